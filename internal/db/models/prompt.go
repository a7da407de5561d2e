package models

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Prompt is one step of a flow. Position orders the steps; the
// endpoint type and provider pair selects the adapter that executes it.
type Prompt struct {
	bun.BaseModel `bun:"table:prompts,alias:p"`

	ID               uuid.UUID        `bun:",type:uuid,pk"`
	FlowID           uuid.UUID        `bun:",type:uuid,notnull"`
	Flow             *Flow            `bun:"rel:belongs-to,join:flow_id=id"`
	Position         int              `bun:",notnull,default:0"`
	EndpointType     string           `bun:",notnull"`
	SelectedProvider string           `bun:",notnull"`
	SelectedModel    string           `bun:",nullzero"`
	SystemPrompt     string           `bun:",nullzero"`
	Tools            []map[string]any `bun:",type:jsonb,nullzero"`

	// Image and video generation parameters.
	BackgroundPrompt     string   `bun:",nullzero"`
	ForegroundPrompt     string   `bun:",nullzero"`
	NegativePrompt       string   `bun:",nullzero"`
	Seed                 *int64   `bun:",nullzero"`
	LightSourceDirection string   `bun:",nullzero"`
	LightSourceStrength  *float64 `bun:",nullzero"`
	PreserveSubject      bool     `bun:",notnull,default:false"`
	DurationSeconds      *int     `bun:",nullzero"`

	CreatedAt bun.NullTime `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt bun.NullTime `bun:",nullzero,notnull,default:current_timestamp"`
}

func NewPrompt(flowID uuid.UUID) *Prompt {
	return &Prompt{
		ID:     uuid.Must(uuid.NewRandom()),
		FlowID: flowID,
	}
}

// RenderedCopy returns a detached copy of the prompt safe to mutate
// during rendering. The persisted row keeps its raw templates.
func (p *Prompt) RenderedCopy() *Prompt {
	c := *p
	c.Flow = nil
	return &c
}
