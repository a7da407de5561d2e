package models

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusDelivered WebhookStatus = "delivered"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// RunWebhook records one outbound notification attempt for a run's
// terminal state. Delivery failures stay here and never touch the run.
type RunWebhook struct {
	bun.BaseModel `bun:"table:run_webhooks,alias:rw"`

	ID              uuid.UUID      `bun:",type:uuid,pk"`
	RunID           uuid.UUID      `bun:",type:uuid,notnull"`
	Run             *Run           `bun:"rel:belongs-to,join:run_id=id"`
	EventType       string         `bun:",notnull"`
	Payload         map[string]any `bun:",type:jsonb,nullzero"`
	EndpointURL     string         `bun:",notnull"`
	Status          WebhookStatus  `bun:",notnull,default:'pending'"`
	AttemptCount    int            `bun:",notnull,default:0"`
	LastAttemptedAt bun.NullTime   `bun:",nullzero"`
	ErrorMessage    string         `bun:",nullzero"`
	CreatedAt       bun.NullTime   `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt       bun.NullTime   `bun:",nullzero,notnull,default:current_timestamp"`
}

func NewRunWebhook(runID uuid.UUID, eventType, endpointURL string, payload map[string]any) *RunWebhook {
	return &RunWebhook{
		ID:          uuid.Must(uuid.NewRandom()),
		RunID:       runID,
		EventType:   eventType,
		EndpointURL: endpointURL,
		Payload:     payload,
		Status:      WebhookStatusPending,
	}
}
