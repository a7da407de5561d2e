// Package replicate implements the image_to_image relighting adapter
// backed by the Replicate predictions API.
package replicate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/types"
)

const (
	baseURL      = "https://api.replicate.com/v1"
	defaultModel = "zsxkib/ic-light"
)

type prediction struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Output interface{} `json:"output"`
	Error  string      `json:"error,omitempty"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

type predictionRequest struct {
	Input map[string]interface{} `json:"input"`
}

type Adapter struct {
	rest *providers.RestClient
	poll providers.PollConfig
}

func NewAdapter(apiKey string) *Adapter {
	return &Adapter{
		rest: providers.NewRestClient(baseURL).WithBearerToken(apiKey),
		poll: providers.DefaultPollConfig(),
	}
}

// WithPollConfig overrides the prediction poll cadence.
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
		return nil, fmt.Errorf("%w: relighting needs an input image", providers.ErrNoInput)
	}

	model := req.Prompt.SelectedModel
	if model == "" {
		model = defaultModel
	}

	body, err := a.rest.DoRequest(ctx, http.MethodPost, "/models/"+model+"/predictions", predictionRequest{
		Input: relightInput(req, sourceURL),
	})
	if err != nil {
		return nil, fmt.Errorf("prediction creation failed: %w", err)
	}

	var created prediction
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("error decoding prediction response: %w", err)
	}
	if created.URLs.Get == "" {
		return nil, fmt.Errorf("prediction %s missing poll url", created.ID)
	}

	final, err := providers.Await(ctx, a.poll, func(ctx context.Context) (*prediction, bool, error) {
		body, err := a.rest.DoRequest(ctx, http.MethodGet, created.URLs.Get, nil)
		if err != nil {
			return nil, false, err
		}

		var current prediction
		if err := json.Unmarshal(body, &current); err != nil {
			return nil, false, fmt.Errorf("error decoding prediction poll response: %w", err)
		}

		switch current.Status {
		case "succeeded":
			return &current, true, nil
		case "failed":
			return nil, false, fmt.Errorf("prediction %s failed: %s", created.ID, current.Error)
		case "canceled":
			return nil, false, fmt.Errorf("prediction %s was canceled", created.ID)
		default:
			return nil, false, nil
		}
	})
	if err != nil {
		return nil, err
	}

	outputURL := firstOutputURL(final.Output)
	if outputURL == "" {
		return nil, fmt.Errorf("prediction %s finished without output", created.ID)
	}

	data, err := providers.Download(ctx, outputURL)
	if err != nil {
		return nil, err
	}

	uploaded, err := req.Uploader.Upload(ctx, data, providers.AssetFilename(outputURL, created.ID+".png"), "", nil)
	if err != nil {
		return nil, err
	}

	return &providers.StepResult{
		Response: map[string]any{
			"id":     created.ID,
			"model":  model,
			"status": final.Status,
			"url":    uploaded.URL,
		},
		OutputURL:     uploaded.URL,
		OutputMediaID: uploaded.ID,
		OutputType:    types.OutputTypeImage,
	}, nil
}

func relightInput(req *providers.StepRequest, sourceURL string) map[string]interface{} {
	input := map[string]interface{}{
		"subject_image": sourceURL,
		"prompt":        req.Prompt.BackgroundPrompt,
	}
	if req.Prompt.ForegroundPrompt != "" {
		input["appended_prompt"] = req.Prompt.ForegroundPrompt
	}
	if req.Prompt.NegativePrompt != "" {
		input["negative_prompt"] = req.Prompt.NegativePrompt
	}
	if req.Prompt.Seed != nil {
		input["seed"] = *req.Prompt.Seed
	}
	if req.Prompt.LightSourceDirection != "" {
		input["light_source_direction"] = req.Prompt.LightSourceDirection
	}
	if req.Prompt.LightSourceStrength != nil {
		input["light_source_strength"] = *req.Prompt.LightSourceStrength
	}
	if req.Prompt.PreserveSubject {
		input["preserve_subject"] = true
	}
	return input
}

// firstOutputURL handles the two output shapes predictions return, a
// bare URL string or a list of them.
func firstOutputURL(output interface{}) string {
	switch v := output.(type) {
	case string:
		return v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
