package openai

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/types"
)

// TranscriptionAdapter turns the step's audio attachment into text
// with Whisper.
type TranscriptionAdapter struct {
	client *openai.Client
}

func NewTranscriptionAdapter(apiKey string) *TranscriptionAdapter {
	return &TranscriptionAdapter{client: openai.NewClient(apiKey)}
}

func (a *TranscriptionAdapter) Execute(ctx context.Context, req *providers.StepRequest) (*providers.StepResult, error) {
	sourceURL := req.InputImageURL
	if sourceURL == "" && len(req.AttachmentURLs) > 0 {
		sourceURL = req.AttachmentURLs[0]
	}
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: transcription needs an audio attachment", providers.ErrNoInput)
	}

	data, err := providers.Download(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	model := req.Prompt.SelectedModel
	if model == "" {
		model = openai.Whisper1
	}

	resp, err := a.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: providers.AssetFilename(sourceURL, "audio.mp3"),
		Reader:   bytes.NewReader(data),
	})
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	return &providers.StepResult{
		Response: map[string]any{
			"text":       resp.Text,
			"model":      model,
			"source_url": sourceURL,
		},
		Text:       resp.Text,
		OutputType: types.OutputTypeText,
	}, nil
}
