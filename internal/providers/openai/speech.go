package openai

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/types"
)

const defaultVoice = openai.VoiceAlloy

// SpeechAdapter renders text to spoken audio with the OpenAI TTS API.
// The audio is stored for serving but gets no media-library record,
// the library holds images and videos only.
type SpeechAdapter struct {
	client *openai.Client
}

func NewSpeechAdapter(apiKey string) *SpeechAdapter {
	return &SpeechAdapter{client: openai.NewClient(apiKey)}
}

func (a *SpeechAdapter) Execute(ctx context.Context, req *providers.StepRequest) (*providers.StepResult, error) {
	input := req.Prompt.BackgroundPrompt
	if input == "" {
		input = req.Run.Message
	}
	if input == "" {
		return nil, fmt.Errorf("%w: speech synthesis needs text", providers.ErrNoInput)
	}

	model := req.Prompt.SelectedModel
	if model == "" {
		model = string(openai.TTSModel1)
	}

	resp, err := a.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          input,
		Voice:          defaultVoice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("error reading speech audio: %w", err)
	}

	audioURL, err := req.Uploader.Store(ctx, data, "speech.mp3", "audio/mpeg")
	if err != nil {
		return nil, err
	}

	return &providers.StepResult{
		Response: map[string]any{
			"model":      model,
			"voice":      string(defaultVoice),
			"characters": len(input),
			"url":        audioURL,
		},
		OutputURL:  audioURL,
		OutputType: types.OutputTypeAudio,
	}, nil
}
