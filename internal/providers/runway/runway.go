// Package runway implements the Runway video generation adapters.
package runway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/types"
)

const (
	baseURL    = "https://api.dev.runwayml.com"
	apiVersion = "2024-11-06"

	defaultImageModel = "gen3a_turbo"
	defaultVideoModel = "gen4_aleph"

	statusSucceeded = "SUCCEEDED"
	statusFailed    = "FAILED"
	statusCancelled = "CANCELLED"
)

type task struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Output  []string `json:"output,omitempty"`
	Failure string   `json:"failure,omitempty"`
}

type imageToVideoRequest struct {
	PromptImage string `json:"promptImage"`
	PromptText  string `json:"promptText,omitempty"`
	Model       string `json:"model"`
	Duration    *int   `json:"duration,omitempty"`
	Ratio       string `json:"ratio,omitempty"`
}

type videoToVideoRequest struct {
	VideoURI   string `json:"videoUri"`
	PromptText string `json:"promptText"`
	Model      string `json:"model"`
	Ratio      string `json:"ratio,omitempty"`
}

type client struct {
	rest *providers.RestClient
	poll providers.PollConfig
}

func newClient(apiKey string) *client {
	return &client{
		rest: providers.NewRestClient(baseURL).WithBearerToken(apiKey).WithHeader("X-Runway-Version", apiVersion),
		poll: providers.DefaultPollConfig(),
	}
}

func (c *client) createTask(ctx context.Context, endpoint string, payload interface{}) (*task, error) {
	body, err := c.rest.DoRequest(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("task creation failed: %w", err)
	}

	var t task
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("error decoding task response: %w", err)
	}
	if t.ID == "" {
		return nil, fmt.Errorf("task response missing id")
	}

	return &t, nil
}

func (c *client) awaitTask(ctx context.Context, id string) (*task, error) {
	return providers.Await(ctx, c.poll, func(ctx context.Context) (*task, bool, error) {
		body, err := c.rest.DoRequest(ctx, http.MethodGet, "/v1/tasks/"+id, nil)
		if err != nil {
			return nil, false, err
		}

		var t task
		if err := json.Unmarshal(body, &t); err != nil {
			return nil, false, fmt.Errorf("error decoding task poll response: %w", err)
		}

		switch t.Status {
		case statusSucceeded:
			return &t, true, nil
		case statusFailed, statusCancelled:
			return nil, false, fmt.Errorf("task %s %s: %s", id, strings.ToLower(t.Status), t.Failure)
		default:
			return nil, false, nil
		}
	})
}

func storeFirstOutput(ctx context.Context, req *providers.StepRequest, t *task) (*models.Media, error) {
	if len(t.Output) == 0 || t.Output[0] == "" {
		return nil, fmt.Errorf("task %s finished without output", t.ID)
	}

	data, err := providers.Download(ctx, t.Output[0])
	if err != nil {
		return nil, err
	}

	return req.Uploader.Upload(ctx, data, providers.AssetFilename(t.Output[0], t.ID+".mp4"), "", nil)
}

// VideoAdapter animates an input image into a video.
type VideoAdapter struct {
	client *client
}

func NewVideoAdapter(apiKey string) *VideoAdapter {
	return &VideoAdapter{client: newClient(apiKey)}
}

// WithPollConfig overrides the task poll cadence.
func (a *VideoAdapter) WithPollConfig(cfg providers.PollConfig) *VideoAdapter {
	a.client.poll = cfg
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

	model := req.Prompt.SelectedModel
	if model == "" {
		model = defaultImageModel
	}

	created, err := a.client.createTask(ctx, "/v1/image_to_video", imageToVideoRequest{
		PromptImage: sourceURL,
		PromptText:  req.Prompt.BackgroundPrompt,
		Model:       model,
		Duration:    req.Prompt.DurationSeconds,
	})
	if err != nil {
		return nil, err
	}

	final, err := a.client.awaitTask(ctx, created.ID)
	if err != nil {
		return nil, err
	}

	uploaded, err := storeFirstOutput(ctx, req, final)
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
		OutputType:    types.OutputTypeVideo,
	}, nil
}

// RestyleAdapter transforms an input video per the step's prompt text.
type RestyleAdapter struct {
	client *client
}

func NewRestyleAdapter(apiKey string) *RestyleAdapter {
	return &RestyleAdapter{client: newClient(apiKey)}
}

// WithPollConfig overrides the task poll cadence.
func (a *RestyleAdapter) WithPollConfig(cfg providers.PollConfig) *RestyleAdapter {
	a.client.poll = cfg
	return a
}

func (a *RestyleAdapter) Execute(ctx context.Context, req *providers.StepRequest) (*providers.StepResult, error) {
	sourceURL := req.InputImageURL
	if sourceURL == "" && len(req.AttachmentURLs) > 0 {
		sourceURL = req.AttachmentURLs[0]
	}
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: video restyling needs an input video", providers.ErrNoInput)
	}

	model := req.Prompt.SelectedModel
	if model == "" {
		model = defaultVideoModel
	}

	created, err := a.client.createTask(ctx, "/v1/video_to_video", videoToVideoRequest{
		VideoURI:   sourceURL,
		PromptText: req.Prompt.BackgroundPrompt,
		Model:      model,
	})
	if err != nil {
		return nil, err
	}

	final, err := a.client.awaitTask(ctx, created.ID)
	if err != nil {
		return nil, err
	}

	uploaded, err := storeFirstOutput(ctx, req, final)
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
		OutputType:    types.OutputTypeVideo,
	}, nil
}
