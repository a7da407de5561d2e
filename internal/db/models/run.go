package models

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusTimedOut  RunStatus = "timed-out"
)

// IsTerminal reports whether the status will never change again.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusTimedOut:
		return true
	}
	return false
}

// RunData is the final output of a run. At most one of ImageURL,
// VideoURL, AudioURL and Text is set; Error carries the failing step's
// message.
type RunData struct {
	ImageURL string `json:"image_url,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
	Text     string `json:"text,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Run struct {
	bun.BaseModel `bun:"table:runs,alias:r"`

	ID             uuid.UUID      `bun:",type:uuid,pk"`
	FlowID         uuid.UUID      `bun:",type:uuid,notnull"`
	Flow           *Flow          `bun:"rel:belongs-to,join:flow_id=id"`
	SourceRunID    *uuid.UUID     `bun:",type:uuid,nullzero"`
	Status         RunStatus      `bun:",notnull,default:'pending'"`
	Message        string         `bun:",nullzero"`
	Variables      map[string]any `bun:",type:jsonb,nullzero"`
	AttachmentURLs []string       `bun:",type:jsonb,nullzero"`
	InputMediaIDs  []string       `bun:",type:jsonb,nullzero"`
	WebhookURL     string         `bun:",nullzero"`
	Data           *RunData       `bun:",type:jsonb,nullzero"`
	PromptRuns     []*PromptRun   `bun:"rel:has-many,join:id=run_id"`
	StartedAt      bun.NullTime   `bun:",nullzero"`
	CompletedAt    bun.NullTime   `bun:",nullzero"`
	CreatedAt      bun.NullTime   `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt      bun.NullTime   `bun:",nullzero,notnull,default:current_timestamp"`
}

func NewRun(flowID uuid.UUID) *Run {
	return &Run{
		ID:     uuid.Must(uuid.NewRandom()),
		FlowID: flowID,
		Status: RunStatusPending,
	}
}
