package providers

import (
	"context"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/secondbreakfast/conductor/internal/media"
)

// StepRequest carries everything an adapter needs to execute one
// prompt. Prompt is a rendered copy; the persisted row keeps its raw
// template text.
type StepRequest struct {
	Prompt         *models.Prompt
	Run            *models.Run
	InputImageURL  string
	AttachmentURLs []string
	Uploader       *media.Uploader
}

type TokenUsage struct {
	Input  int
	Output int
	Total  int
}

// StepResult is what an adapter hands back. Response is the sanitized
// provider payload persisted for the audit trail; raw base64 content
// never belongs in it.
type StepResult struct {
	Response       map[string]any
	Usage          *TokenUsage
	OutputURL      string
	OutputMediaID  string
	OutputType     string
	Text           string
	AttachmentURLs []string
	OutputMediaIDs []string
}

type Adapter interface {
	Execute(ctx context.Context, req *StepRequest) (*StepResult, error)
}
