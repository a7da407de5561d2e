package luma

import (
	"context"
	"fmt"

	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/types"
)

// VideoAdapter animates a single input image into a video.
type VideoAdapter struct {
	client *Client
	poll   providers.PollConfig
}

func NewVideoAdapter(apiKey string) *VideoAdapter {
	return &VideoAdapter{client: NewClient(apiKey), poll: providers.DefaultPollConfig()}
}

// WithPollConfig overrides the generation poll cadence.
func (a *VideoAdapter) WithPollConfig(cfg providers.PollConfig) *VideoAdapter {
	a.poll = cfg
	return a
}

func (a *VideoAdapter) Execute(ctx context.Context, req *providers.StepRequest) (*providers.StepResult, error) {
	sourceURL := req.InputImageURL
	if sourceURL == "" && len(req.AttachmentURLs) > 0 {
		sourceURL = req.AttachmentURLs[0]
	}
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: video generation needs an input image", providers.ErrNoInput)
	}

	gen, err := a.client.ImageToVideo(ctx, req.Prompt.BackgroundPrompt, sourceURL, req.Prompt.SelectedModel, durationParam(req.Prompt.DurationSeconds))
	if err != nil {
		return nil, fmt.Errorf("video generation failed: %w", err)
	}

	final, err := a.client.AwaitVideo(ctx, a.poll, gen.ID)
	if err != nil {
		return nil, err
	}
	if final.Assets.Video == "" {
		return nil, fmt.Errorf("generation %s completed without a video asset", gen.ID)
	}

	data, err := providers.Download(ctx, final.Assets.Video)
	if err != nil {
		return nil, err
	}

	uploaded, err := req.Uploader.Upload(ctx, data, providers.AssetFilename(final.Assets.Video, gen.ID+".mp4"), "", nil)
	if err != nil {
		return nil, err
	}

	return &providers.StepResult{
		Response: map[string]any{
			"id":    gen.ID,
			"state": final.State,
			"url":   uploaded.URL,
		},
		OutputURL:     uploaded.URL,
		OutputMediaID: uploaded.ID,
		OutputType:    types.OutputTypeVideo,
	}, nil
}

func durationParam(seconds *int) string {
	if seconds == nil {
		return ""
	}
	return fmt.Sprintf("%ds", *seconds)
}
