// Package googleai implements the image_to_video adapter backed by
// Vertex AI Veo.
package googleai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/types"
)

const (
	defaultLocation = "us-central1"
	defaultModel    = "veo-2.0-generate-001"
)

type predictRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoInstance struct {
	Prompt string    `json:"prompt,omitempty"`
	Image  *veoImage `json:"image,omitempty"`
}

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type veoParameters struct {
	SampleCount     int  `json:"sampleCount"`
	DurationSeconds *int `json:"durationSeconds,omitempty"`
}

type fetchOperationRequest struct {
	OperationName string `json:"operationName"`
}

type operation struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done"`
	Response *operationVideo `json:"response,omitempty"`
	Error    *operationError `json:"error,omitempty"`
}

type operationVideo struct {
	Videos []veoVideo `json:"videos,omitempty"`
}

type veoVideo struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	GcsURI             string `json:"gcsUri,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}

type operationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// VeoAdapter drives the long-running Veo generation cycle, submit via
// predictLongRunning, then poll with fetchPredictOperation.
type VeoAdapter struct {
	baseURL  string
	tokens   *tokenSource
	client   *http.Client
	project  string
	location string
	poll     providers.PollConfig
}

func NewVeoAdapter(projectID, location, credentialsFile string) (*VeoAdapter, error) {
	if projectID == "" {
		return nil, fmt.Errorf("google project id is required")
	}
	if location == "" {
		location = defaultLocation
	}

	tokens, err := newTokenSource(credentialsFile)
	if err != nil {
		return nil, err
	}

	return &VeoAdapter{
		baseURL:  fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", location),
		tokens:   tokens,
		client:   &http.Client{Timeout: 60 * time.Second},
		project:  projectID,
		location: location,
		poll:     providers.DefaultPollConfig(),
	}, nil
}

// WithPollConfig overrides the operation poll cadence.
func (a *VeoAdapter) WithPollConfig(cfg providers.PollConfig) *VeoAdapter {
	a.poll = cfg
	return a
}

func (a *VeoAdapter) Execute(ctx context.Context, req *providers.StepRequest) (*providers.StepResult, error) {
	sourceURL := req.InputImageURL
	if sourceURL == "" && len(req.AttachmentURLs) > 0 {
		sourceURL = req.AttachmentURLs[0]
	}
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: video generation needs an input image", providers.ErrNoInput)
	}

	imageData, err := providers.Download(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	model := req.Prompt.SelectedModel
	if model == "" {
		model = defaultModel
	}

	payload := predictRequest{
		Instances: []veoInstance{{
			Prompt: req.Prompt.BackgroundPrompt,
			Image: &veoImage{
				BytesBase64Encoded: base64.StdEncoding.EncodeToString(imageData),
				MimeType:           mimetype.Detect(imageData).String(),
			},
		}},
		Parameters: veoParameters{
			SampleCount:     1,
			DurationSeconds: req.Prompt.DurationSeconds,
		},
	}

	body, err := a.doRequest(ctx, a.modelPath(model)+":predictLongRunning", payload)
	if err != nil {
		return nil, fmt.Errorf("veo generation failed: %w", err)
	}

	var started operation
	if err := json.Unmarshal(body, &started); err != nil {
		return nil, fmt.Errorf("error decoding veo response: %w", err)
	}
	if started.Name == "" {
		return nil, fmt.Errorf("veo response missing operation name")
	}

	final, err := providers.Await(ctx, a.poll, func(ctx context.Context) (*operation, bool, error) {
		body, err := a.doRequest(ctx, a.modelPath(model)+":fetchPredictOperation", fetchOperationRequest{OperationName: started.Name})
		if err != nil {
			return nil, false, err
		}

		var current operation
		if err := json.Unmarshal(body, &current); err != nil {
			return nil, false, fmt.Errorf("error decoding veo operation: %w", err)
		}
		if current.Error != nil {
			return nil, false, fmt.Errorf("veo operation failed (code %d): %s", current.Error.Code, current.Error.Message)
		}

		return &current, current.Done, nil
	})
	if err != nil {
		return nil, err
	}

	videoData, mimeType, err := extractVideo(ctx, final)
	if err != nil {
		return nil, err
	}

	uploaded, err := req.Uploader.Upload(ctx, videoData, "veo.mp4", mimeType, nil)
	if err != nil {
		return nil, err
	}

	return &providers.StepResult{
		Response: map[string]any{
			"operation": started.Name,
			"model":     model,
			"mime_type": mimeType,
			"url":       uploaded.URL,
		},
		OutputURL:     uploaded.URL,
		OutputMediaID: uploaded.ID,
		OutputType:    types.OutputTypeVideo,
	}, nil
}

func (a *VeoAdapter) modelPath(model string) string {
	return fmt.Sprintf("/projects/%s/locations/%s/publishers/google/models/%s", a.project, a.location, model)
}

// doRequest POSTs JSON with a fresh service-account token attached.
func (a *VeoAdapter) doRequest(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, body)
	}

	return body, nil
}

// extractVideo pulls the first generated video out of the finished
// operation. Veo returns bytes inline when no output bucket is
// configured, or a URI otherwise.
func extractVideo(ctx context.Context, op *operation) ([]byte, string, error) {
	if op.Response == nil || len(op.Response.Videos) == 0 {
		return nil, "", fmt.Errorf("veo operation %s finished without videos", op.Name)
	}

	video := op.Response.Videos[0]
	mimeType := video.MimeType
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	if video.BytesBase64Encoded != "" {
		data, err := base64.StdEncoding.DecodeString(video.BytesBase64Encoded)
		if err != nil {
			return nil, "", fmt.Errorf("error decoding veo video bytes: %w", err)
		}
		return data, mimeType, nil
	}

	if strings.HasPrefix(video.GcsURI, "http://") || strings.HasPrefix(video.GcsURI, "https://") {
		data, err := providers.Download(ctx, video.GcsURI)
		if err != nil {
			return nil, "", err
		}
		return data, mimeType, nil
	}

	return nil, "", fmt.Errorf("veo operation %s returned an unfetchable video uri %q", op.Name, video.GcsURI)
}
