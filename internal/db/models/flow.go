package models

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Flow struct {
	bun.BaseModel `bun:"table:flows,alias:f"`

	ID          uuid.UUID    `bun:",type:uuid,pk"`
	Name        string       `bun:",notnull"`
	Slug        string       `bun:",nullzero"`
	Description string       `bun:",nullzero"`
	Prompts     []*Prompt    `bun:"rel:has-many,join:id=flow_id"`
	CreatedAt   bun.NullTime `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt   bun.NullTime `bun:",nullzero,notnull,default:current_timestamp"`
}

func NewFlow(name, slug, description string) *Flow {
	return &Flow{
		ID:          uuid.Must(uuid.NewRandom()),
		Name:        name,
		Slug:        slug,
		Description: description,
	}
}
