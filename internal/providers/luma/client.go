// Package luma implements the image_to_video adapters backed by the
// Luma Dream Machine API.
package luma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/secondbreakfast/conductor/internal/providers"
)

const (
	baseURL = "https://api.lumalabs.ai/dream-machine/v1"

	stateCompleted = "completed"
	stateFailed    = "failed"
)

type Generation struct {
	ID            string  `json:"id"`
	State         string  `json:"state"`
	FailureReason *string `json:"failure_reason,omitempty"`
	Assets        struct {
		Video string `json:"video"`
	} `json:"assets"`
}

type GenerationRequest struct {
	Prompt      string                 `json:"prompt"`
	Model       string                 `json:"model,omitempty"`
	AspectRatio string                 `json:"aspect_ratio,omitempty"`
	Loop        bool                   `json:"loop,omitempty"`
	Duration    string                 `json:"duration,omitempty"`
	Keyframes   map[string]interface{} `json:"keyframes,omitempty"`
}

type Keyframe struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
	ID   string `json:"id,omitempty"`
}

type Client struct {
	rest *providers.RestClient
}

func NewClient(apiKey string) *Client {
	return &Client{rest: providers.NewRestClient(baseURL).WithBearerToken(apiKey)}
}

func (c *Client) CreateGeneration(ctx context.Context, req GenerationRequest) (*Generation, error) {
	body, err := c.rest.DoRequest(ctx, http.MethodPost, "/generations", req)
	if err != nil {
		return nil, err
	}

	var gen Generation
	if err := json.Unmarshal(body, &gen); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	return &gen, nil
}

func (c *Client) GetGeneration(ctx context.Context, id string) (*Generation, error) {
	body, err := c.rest.DoRequest(ctx, http.MethodGet, fmt.Sprintf("/generations/%s", id), nil)
	if err != nil {
		return nil, err
	}

	var gen Generation
	if err := json.Unmarshal(body, &gen); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	return &gen, nil
}

// ImageToVideo starts a generation animating the image at imageURL.
func (c *Client) ImageToVideo(ctx context.Context, prompt, imageURL, model, duration string) (*Generation, error) {
	req := GenerationRequest{
		Prompt:   prompt,
		Model:    model,
		Duration: duration,
		Keyframes: map[string]interface{}{
			"frame0": Keyframe{Type: "image", URL: imageURL},
		},
	}
	return c.CreateGeneration(ctx, req)
}

// AwaitVideo polls the generation until it completes.
func (c *Client) AwaitVideo(ctx context.Context, poll providers.PollConfig, id string) (*Generation, error) {
	return providers.Await(ctx, poll, func(ctx context.Context) (*Generation, bool, error) {
		gen, err := c.GetGeneration(ctx, id)
		if err != nil {
			return nil, false, err
		}

		switch gen.State {
		case stateCompleted:
			return gen, true, nil
		case stateFailed:
			reason := "unknown reason"
			if gen.FailureReason != nil {
				reason = *gen.FailureReason
			}
			return nil, false, fmt.Errorf("generation %s failed: %s", id, reason)
		default:
			return nil, false, nil
		}
	})
}
