package repository

import (
	"context"
	"fmt"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/uptrace/bun"
)

type IPromptRunRepository interface {
	Repository[models.PromptRun]
	WithTx(tx *bun.Tx) IPromptRunRepository
	WithDB(db *bun.DB) IPromptRunRepository
	ListByRunID(ctx context.Context, runID string) ([]models.PromptRun, error)
}

type PromptRunRepository struct {
	db bun.IDB
}

func NewPromptRunRepository(db *bun.DB) IPromptRunRepository {
	return &PromptRunRepository{db: db}
}

func (r *PromptRunRepository) Create(ctx context.Context, promptRun *models.PromptRun) (*models.PromptRun, error) {
	if promptRun == nil {
		return nil, fmt.Errorf("prompt run model is nil")
	}

	if err := r.db.NewInsert().Model(promptRun).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return promptRun, nil
}

func (r *PromptRunRepository) GetByID(ctx context.Context, id string) (*models.PromptRun, error) {
	var promptRun models.PromptRun
	if err := r.db.NewSelect().Model(&promptRun).Where("pr.id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}

	return &promptRun, nil
}

func (r *PromptRunRepository) ListByRunID(ctx context.Context, runID string) ([]models.PromptRun, error) {
	var promptRuns []models.PromptRun
	err := r.db.NewSelect().Model(&promptRuns).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return promptRuns, nil
}

func (r *PromptRunRepository) UpdateByID(ctx context.Context, id string, promptRun *models.PromptRun) (*models.PromptRun, error) {
	if promptRun == nil {
		return nil, fmt.Errorf("prompt run model is nil")
	}

	if err := r.db.NewUpdate().Model(promptRun).Where("id = ?", id).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return promptRun, nil
}

func (r *PromptRunRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().Model(&models.PromptRun{}).Where("id = ?", id).Exec(ctx)
	return err
}

func (r *PromptRunRepository) WithTx(tx *bun.Tx) IPromptRunRepository {
	return &PromptRunRepository{db: tx}
}

func (r *PromptRunRepository) WithDB(db *bun.DB) IPromptRunRepository {
	return &PromptRunRepository{db: db}
}
