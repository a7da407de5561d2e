// Package webhook delivers run lifecycle notifications and records
// every delivery attempt.
package webhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/secondbreakfast/conductor/internal/db/repository"
	"github.com/secondbreakfast/conductor/internal/utils/jsonutil"
	"github.com/secondbreakfast/conductor/internal/utils/webhookutil"
	"github.com/secondbreakfast/conductor/pkg/logger"
)

type eventPayload struct {
	Type    string    `json:"type"`
	Data    eventData `json:"data"`
	Created int64     `json:"created"`
}

type eventData struct {
	Object runObject `json:"object"`
}

// runObject is the public run representation. Internal fields such as
// variables, attachments and the webhook url itself stay out of it.
type runObject struct {
	ID          uuid.UUID        `json:"id"`
	FlowID      uuid.UUID        `json:"flow_id"`
	Status      models.RunStatus `json:"status"`
	StartedAt   bun.NullTime     `json:"started_at"`
	CompletedAt bun.NullTime     `json:"completed_at"`
	CreatedAt   bun.NullTime     `json:"created_at"`
	UpdatedAt   bun.NullTime     `json:"updated_at"`
	Data        *models.RunData  `json:"data,omitempty"`
	URL         string           `json:"url"`
}

type Notifier struct {
	webhooks  repository.IRunWebhookRepository
	publicURL string
}

func NewNotifier(webhooks repository.IRunWebhookRepository, publicURL string) *Notifier {
	return &Notifier{
		webhooks:  webhooks,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// Notify posts one notification for run and records the attempt as a
// RunWebhook row. Delivery failure is recorded on that row and logged,
// never returned: notification outcome must not influence the run.
func (n *Notifier) Notify(ctx context.Context, run *models.Run, eventType string) {
	if run == nil || run.WebhookURL == "" {
		return
	}

	payload := n.buildPayload(run, eventType)

	payloadMap, err := jsonutil.StructToMap(payload)
	if err != nil {
		logger.Error("Failed to encode webhook payload", run.ID, err)
		return
	}

	record, err := n.webhooks.Create(ctx, models.NewRunWebhook(run.ID, eventType, run.WebhookURL, payloadMap))
	if err != nil {
		logger.Error("Failed to record webhook attempt", run.ID, err)
		return
	}

	deliverErr := webhookutil.Invoke(ctx, run.WebhookURL, payload)

	now := time.Now()
	record.AttemptCount = 1
	record.LastAttemptedAt = bun.NullTime{Time: now}
	record.UpdatedAt = bun.NullTime{Time: now}
	if deliverErr != nil {
		record.Status = models.WebhookStatusFailed
		record.ErrorMessage = deliverErr.Error()
		logger.Warn("Webhook delivery failed", run.ID, run.WebhookURL, deliverErr)
	} else {
		record.Status = models.WebhookStatusDelivered
		record.ErrorMessage = ""
	}

	if _, err := n.webhooks.UpdateByID(ctx, record.ID.String(), record); err != nil {
		logger.Error("Failed to update webhook attempt", run.ID, record.ID, err)
	}
}

func (n *Notifier) buildPayload(run *models.Run, eventType string) eventPayload {
	return eventPayload{
		Type: eventType,
		Data: eventData{Object: runObject{
			ID:          run.ID,
			FlowID:      run.FlowID,
			Status:      run.Status,
			StartedAt:   run.StartedAt,
			CompletedAt: run.CompletedAt,
			CreatedAt:   run.CreatedAt,
			UpdatedAt:   run.UpdatedAt,
			Data:        run.Data,
			URL:         n.runURL(run.ID),
		}},
		Created: time.Now().Unix(),
	}
}

func (n *Notifier) runURL(id uuid.UUID) string {
	if n.publicURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/runs/%s", n.publicURL, id)
}
