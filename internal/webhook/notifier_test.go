package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/secondbreakfast/conductor/internal/config"
	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/secondbreakfast/conductor/internal/db/repository"
	"github.com/secondbreakfast/conductor/internal/types"
	"github.com/secondbreakfast/conductor/pkg/logger"
)

func init() {
	logger.InitLogger(&config.Config{Environment: "test"})
}

type fakeWebhookRepo struct {
	created []*models.RunWebhook
	updated []*models.RunWebhook
}

func (f *fakeWebhookRepo) Create(ctx context.Context, webhook *models.RunWebhook) (*models.RunWebhook, error) {
	f.created = append(f.created, webhook)
	return webhook, nil
}

func (f *fakeWebhookRepo) GetByID(ctx context.Context, id string) (*models.RunWebhook, error) {
	return nil, nil
}

func (f *fakeWebhookRepo) UpdateByID(ctx context.Context, id string, webhook *models.RunWebhook) (*models.RunWebhook, error) {
	f.updated = append(f.updated, webhook)
	return webhook, nil
}

func (f *fakeWebhookRepo) DeleteByID(ctx context.Context, id string) error { return nil }

func (f *fakeWebhookRepo) ListByRunID(ctx context.Context, runID string) ([]models.RunWebhook, error) {
	return nil, nil
}

func (f *fakeWebhookRepo) WithTx(tx *bun.Tx) repository.IRunWebhookRepository { return f }
func (f *fakeWebhookRepo) WithDB(db *bun.DB) repository.IRunWebhookRepository { return f }

func completedRun(webhookURL string) *models.Run {
	run := models.NewRun(uuid.New())
	run.Status = models.RunStatusCompleted
	run.WebhookURL = webhookURL
	run.Data = &models.RunData{ImageURL: "https://cdn.test/out.png"}
	return run
}

func TestNotify_DeliversAndRecordsSuccess(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := &fakeWebhookRepo{}
	notifier := NewNotifier(repo, "https://conductor.test")
	run := completedRun(server.URL)

	notifier.Notify(context.Background(), run, types.EventRunCompleted)

	require.Len(t, repo.created, 1)
	require.Len(t, repo.updated, 1)

	record := repo.updated[0]
	assert.Equal(t, models.WebhookStatusDelivered, record.Status)
	assert.Equal(t, 1, record.AttemptCount)
	assert.False(t, record.LastAttemptedAt.IsZero())
	assert.Empty(t, record.ErrorMessage)

	assert.Equal(t, types.EventRunCompleted, received["type"])
	assert.NotZero(t, received["created"])

	object, ok := received["data"].(map[string]any)["object"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, run.ID.String(), object["id"])
	assert.Equal(t, run.FlowID.String(), object["flow_id"])
	assert.Equal(t, string(models.RunStatusCompleted), object["status"])
	assert.Equal(t, "https://conductor.test/runs/"+run.ID.String(), object["url"])
	assert.NotContains(t, object, "variables")
	assert.NotContains(t, object, "webhook_url")
}

func TestNotify_RecordsFailureWithoutEscalating(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	repo := &fakeWebhookRepo{}
	notifier := NewNotifier(repo, "https://conductor.test")
	run := completedRun(server.URL)
	run.Status = models.RunStatusFailed

	notifier.Notify(context.Background(), run, types.EventRunFailed)

	require.Len(t, repo.updated, 1)
	record := repo.updated[0]
	assert.Equal(t, models.WebhookStatusFailed, record.Status)
	assert.Equal(t, 1, record.AttemptCount)
	assert.Contains(t, record.ErrorMessage, "500")

	// The run itself is untouched by the delivery outcome.
	assert.Equal(t, models.RunStatusFailed, run.Status)
}

func TestNotify_UnreachableEndpointRecorded(t *testing.T) {
	repo := &fakeWebhookRepo{}
	notifier := NewNotifier(repo, "")
	run := completedRun("http://127.0.0.1:1/webhook")

	notifier.Notify(context.Background(), run, types.EventRunCompleted)

	require.Len(t, repo.created, 1)
	require.Len(t, repo.updated, 1)
	assert.Equal(t, models.WebhookStatusFailed, repo.updated[0].Status)
	assert.NotEmpty(t, repo.updated[0].ErrorMessage)
}

func TestNotify_NoopWithoutWebhookURL(t *testing.T) {
	repo := &fakeWebhookRepo{}
	notifier := NewNotifier(repo, "https://conductor.test")

	notifier.Notify(context.Background(), completedRun(""), types.EventRunCompleted)

	assert.Empty(t, repo.created)
	assert.Empty(t, repo.updated)
}

func TestNotify_PendingRecordPrecedesDelivery(t *testing.T) {
	repo := &fakeWebhookRepo{}
	var createdBeforeDelivery bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		createdBeforeDelivery = len(repo.created) == 1
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewNotifier(repo, "https://conductor.test")
	notifier.Notify(context.Background(), completedRun(server.URL), types.EventRunCompleted)

	assert.True(t, createdBeforeDelivery)
	require.Len(t, repo.created, 1)
	assert.NotNil(t, repo.created[0].Payload)
}
