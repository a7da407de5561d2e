// Package bfl implements the image_to_image adapter backed by the
// Black Forest Labs FLUX Kontext API.
package bfl

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/types"
)

const (
	baseURL      = "https://api.bfl.ai"
	defaultModel = "flux-kontext-pro"

	statusReady = "Ready"
)

type generationRequest struct {
	Prompt     string `json:"prompt"`
	InputImage string `json:"input_image,omitempty"`
	Seed       *int64 `json:"seed,omitempty"`
}

type generation struct {
	ID         string            `json:"id"`
	PollingURL string            `json:"polling_url,omitempty"`
	Status     string            `json:"status,omitempty"`
	Result     *generationResult `json:"result,omitempty"`
}

type generationResult struct {
	Sample string `json:"sample"`
}

type Adapter struct {
	rest *providers.RestClient
	poll providers.PollConfig
}

func NewAdapter(apiKey string) *Adapter {
	return &Adapter{
		rest: providers.NewRestClient(baseURL).WithHeader("x-key", apiKey),
		poll: providers.DefaultPollConfig(),
	}
}

// WithPollConfig overrides the result poll cadence.
func (a *Adapter) WithPollConfig(cfg providers.PollConfig) *Adapter {
	a.poll = cfg
	return a
}

func (a *Adapter) Execute(ctx context.Context, req *providers.StepRequest) (*providers.StepResult, error) {
	sourceURL := req.InputImageURL
	if sourceURL == "" && len(req.AttachmentURLs) > 0 {
		sourceURL = req.AttachmentURLs[0]
	}
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: image editing needs an input image", providers.ErrNoInput)
	}

	imageData, err := providers.Download(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	model := req.Prompt.SelectedModel
	if model == "" {
		model = defaultModel
	}

	payload := generationRequest{
		Prompt:     editPrompt(req),
		InputImage: base64.StdEncoding.EncodeToString(imageData),
		Seed:       req.Prompt.Seed,
	}

	body, err := a.rest.DoRequest(ctx, http.MethodPost, "/v1/"+model, payload)
	if err != nil {
		return nil, fmt.Errorf("flux generation failed: %w", err)
	}

	var gen generation
	if err := json.Unmarshal(body, &gen); err != nil {
		return nil, fmt.Errorf("error decoding flux response: %w", err)
	}
	if gen.PollingURL == "" {
		return nil, fmt.Errorf("flux response for %s missing polling url", gen.ID)
	}

	final, err := providers.Await(ctx, a.poll, func(ctx context.Context) (*generation, bool, error) {
		body, err := a.rest.DoRequest(ctx, http.MethodGet, gen.PollingURL, nil)
		if err != nil {
			return nil, false, err
		}

		var current generation
		if err := json.Unmarshal(body, &current); err != nil {
			return nil, false, fmt.Errorf("error decoding flux poll response: %w", err)
		}

		switch current.Status {
		case statusReady:
			return &current, true, nil
		case "Error", "Content Moderated", "Request Moderated", "Task not found":
			return nil, false, fmt.Errorf("flux generation %s failed with status %q", gen.ID, current.Status)
		default:
			return nil, false, nil
		}
	})
	if err != nil {
		return nil, err
	}
	if final.Result == nil || final.Result.Sample == "" {
		return nil, fmt.Errorf("flux generation %s finished without a sample", gen.ID)
	}

	data, err := providers.Download(ctx, final.Result.Sample)
	if err != nil {
		return nil, err
	}

	uploaded, err := req.Uploader.Upload(ctx, data, providers.AssetFilename(final.Result.Sample, gen.ID+".jpg"), "", nil)
	if err != nil {
		return nil, err
	}

	response := map[string]any{
		"id":     gen.ID,
		"model":  model,
		"status": final.Status,
		"url":    uploaded.URL,
	}
	if req.Prompt.Seed != nil {
		response["seed"] = *req.Prompt.Seed
	}

	return &providers.StepResult{
		Response:      response,
		OutputURL:     uploaded.URL,
		OutputMediaID: uploaded.ID,
		OutputType:    types.OutputTypeImage,
	}, nil
}

// editPrompt joins the background and foreground instructions into the
// single prompt Kontext accepts.
func editPrompt(req *providers.StepRequest) string {
	parts := make([]string, 0, 2)
	for _, text := range []string{req.Prompt.BackgroundPrompt, req.Prompt.ForegroundPrompt} {
		if strings.TrimSpace(text) != "" {
			parts = append(parts, strings.TrimSpace(text))
		}
	}
	return strings.Join(parts, "\n")
}
