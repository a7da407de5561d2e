package models

import (
	"github.com/uptrace/bun"
)

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Media is a library record for an uploaded image or video. The ID is
// the public identifier, prefixed img_ or vdo_ by type.
type Media struct {
	bun.BaseModel `bun:"table:media,alias:m"`

	ID            string       `bun:",pk"`
	Type          MediaType    `bun:",notnull"`
	Filename      string       `bun:",notnull"`
	URL           string       `bun:",notnull"`
	MimeType      string       `bun:",nullzero"`
	Size          int64        `bun:",notnull,default:0"`
	Width         *int         `bun:",nullzero"`
	Height        *int         `bun:",nullzero"`
	Duration      *float64     `bun:",nullzero"`
	ThumbnailURL  string       `bun:",nullzero"`
	SourceImageID string       `bun:",nullzero"`
	CreatedAt     bun.NullTime `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt     bun.NullTime `bun:",nullzero,notnull,default:current_timestamp"`
}
