package repository

import (
	"context"
	"fmt"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/uptrace/bun"
)

type IRunWebhookRepository interface {
	Repository[models.RunWebhook]
	WithTx(tx *bun.Tx) IRunWebhookRepository
	WithDB(db *bun.DB) IRunWebhookRepository
	ListByRunID(ctx context.Context, runID string) ([]models.RunWebhook, error)
}

type RunWebhookRepository struct {
	db bun.IDB
}

func NewRunWebhookRepository(db *bun.DB) IRunWebhookRepository {
	return &RunWebhookRepository{db: db}
}

func (r *RunWebhookRepository) Create(ctx context.Context, webhook *models.RunWebhook) (*models.RunWebhook, error) {
	if webhook == nil {
		return nil, fmt.Errorf("run webhook model is nil")
	}

	if err := r.db.NewInsert().Model(webhook).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return webhook, nil
}

func (r *RunWebhookRepository) GetByID(ctx context.Context, id string) (*models.RunWebhook, error) {
	var webhook models.RunWebhook
	if err := r.db.NewSelect().Model(&webhook).Where("rw.id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}

	return &webhook, nil
}

func (r *RunWebhookRepository) ListByRunID(ctx context.Context, runID string) ([]models.RunWebhook, error) {
	var webhooks []models.RunWebhook
	err := r.db.NewSelect().Model(&webhooks).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return webhooks, nil
}

func (r *RunWebhookRepository) UpdateByID(ctx context.Context, id string, webhook *models.RunWebhook) (*models.RunWebhook, error) {
	if webhook == nil {
		return nil, fmt.Errorf("run webhook model is nil")
	}

	if err := r.db.NewUpdate().Model(webhook).Where("id = ?", id).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return webhook, nil
}

func (r *RunWebhookRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().Model(&models.RunWebhook{}).Where("id = ?", id).Exec(ctx)
	return err
}

func (r *RunWebhookRepository) WithTx(tx *bun.Tx) IRunWebhookRepository {
	return &RunWebhookRepository{db: tx}
}

func (r *RunWebhookRepository) WithDB(db *bun.DB) IRunWebhookRepository {
	return &RunWebhookRepository{db: db}
}
