package models

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type PromptRunStatus string

const (
	PromptRunStatusPending   PromptRunStatus = "pending"
	PromptRunStatusCompleted PromptRunStatus = "completed"
	PromptRunStatusFailed    PromptRunStatus = "failed"
)

// PromptRun records one execution of one prompt within a run. Rows are
// inserted pending before dispatch and receive exactly one terminal
// update; a rerun inserts a fresh row instead of mutating an old one.
type PromptRun struct {
	bun.BaseModel `bun:"table:prompt_runs,alias:pr"`

	ID               uuid.UUID       `bun:",type:uuid,pk"`
	PromptID         uuid.UUID       `bun:",type:uuid,notnull"`
	Prompt           *Prompt         `bun:"rel:belongs-to,join:prompt_id=id"`
	RunID            uuid.UUID       `bun:",type:uuid,notnull"`
	Run              *Run            `bun:"rel:belongs-to,join:run_id=id"`
	Status           PromptRunStatus `bun:",notnull,default:'pending'"`
	SelectedProvider string          `bun:",nullzero"`
	Model            string          `bun:",nullzero"`

	InputTokens  *int `bun:",nullzero"`
	OutputTokens *int `bun:",nullzero"`
	TotalTokens  *int `bun:",nullzero"`

	Response             map[string]any `bun:",type:jsonb,nullzero"`
	InputMediaIDs        []string       `bun:",type:jsonb,nullzero"`
	OutputMediaIDs       []string       `bun:",type:jsonb,nullzero"`
	SourceAttachmentURLs []string       `bun:",type:jsonb,nullzero"`
	AttachmentURLs       []string       `bun:",type:jsonb,nullzero"`

	StartedAt   bun.NullTime `bun:",nullzero"`
	CompletedAt bun.NullTime `bun:",nullzero"`
	CreatedAt   bun.NullTime `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt   bun.NullTime `bun:",nullzero,notnull,default:current_timestamp"`
}

func NewPromptRun(runID, promptID uuid.UUID) *PromptRun {
	return &PromptRun{
		ID:       uuid.Must(uuid.NewRandom()),
		RunID:    runID,
		PromptID: promptID,
		Status:   PromptRunStatusPending,
	}
}
