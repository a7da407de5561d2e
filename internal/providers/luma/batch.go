package luma

import (
	"context"
	"fmt"

	"github.com/secondbreakfast/conductor/internal/media"
	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/types"
)

// BatchAdapter generates one video per run attachment. Attachment urls
// are paired with the run's input media ids by index; an image whose
// derived video already exists in the media library is reused instead
// of regenerated, keyed by source_image_id.
type BatchAdapter struct {
	client *Client
	poll   providers.PollConfig
}

func NewBatchAdapter(apiKey string) *BatchAdapter {
	return &BatchAdapter{client: NewClient(apiKey), poll: providers.DefaultPollConfig()}
}

// WithPollConfig overrides the generation poll cadence.
func (a *BatchAdapter) WithPollConfig(cfg providers.PollConfig) *BatchAdapter {
	a.poll = cfg
	return a
}

func (a *BatchAdapter) Execute(ctx context.Context, req *providers.StepRequest) (*providers.StepResult, error) {
	run := req.Run
	if len(run.AttachmentURLs) == 0 {
		return nil, fmt.Errorf("%w: batch video generation needs attachments", providers.ErrNoInput)
	}

	videoURLs := make([]string, 0, len(run.AttachmentURLs))
	videoIDs := make([]string, 0, len(run.AttachmentURLs))
	generated, reused := 0, 0

	for i, imageURL := range run.AttachmentURLs {
		if imageURL == "" {
			continue
		}

		// Media ids can run shorter than attachment urls when some
		// attachments arrived as bare urls.
		mediaID := ""
		if i < len(run.InputMediaIDs) {
			mediaID = run.InputMediaIDs[i]
		}

		if mediaID != "" {
			existing, err := req.Uploader.FindVideoBySource(ctx, mediaID)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				videoURLs = append(videoURLs, existing.URL)
				videoIDs = append(videoIDs, existing.ID)
				reused++
				continue
			}
		}

		gen, err := a.client.ImageToVideo(ctx, req.Prompt.BackgroundPrompt, imageURL, req.Prompt.SelectedModel, durationParam(req.Prompt.DurationSeconds))
		if err != nil {
			return nil, fmt.Errorf("video generation for attachment %d failed: %w", i, err)
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

		var opts *media.UploadOptions
		if mediaID != "" {
			opts = &media.UploadOptions{SourceImageID: mediaID}
		}

		uploaded, err := req.Uploader.Upload(ctx, data, providers.AssetFilename(final.Assets.Video, gen.ID+".mp4"), "", opts)
		if err != nil {
			return nil, err
		}

		videoURLs = append(videoURLs, uploaded.URL)
		videoIDs = append(videoIDs, uploaded.ID)
		generated++
	}

	if len(videoURLs) == 0 {
		return nil, fmt.Errorf("batch generation produced no videos")
	}

	return &providers.StepResult{
		Response: map[string]any{
			"videos":    len(videoURLs),
			"generated": generated,
			"reused":    reused,
			"urls":      videoURLs,
		},
		OutputURL:      videoURLs[0],
		OutputMediaID:  videoIDs[0],
		OutputType:     types.OutputTypeVideo,
		AttachmentURLs: videoURLs,
		OutputMediaIDs: videoIDs,
	}, nil
}
