package repository

import (
	"context"
	"fmt"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/uptrace/bun"
)

type IPromptRepository interface {
	Repository[models.Prompt]
	WithTx(tx *bun.Tx) IPromptRepository
	WithDB(db *bun.DB) IPromptRepository
	ListByFlowID(ctx context.Context, flowID string) ([]models.Prompt, error)
}

type PromptRepository struct {
	db bun.IDB
}

func NewPromptRepository(db *bun.DB) IPromptRepository {
	return &PromptRepository{db: db}
}

func (r *PromptRepository) Create(ctx context.Context, prompt *models.Prompt) (*models.Prompt, error) {
	if prompt == nil {
		return nil, fmt.Errorf("prompt model is nil")
	}

	if err := r.db.NewInsert().Model(prompt).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return prompt, nil
}

func (r *PromptRepository) GetByID(ctx context.Context, id string) (*models.Prompt, error) {
	var prompt models.Prompt
	if err := r.db.NewSelect().Model(&prompt).Where("p.id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}

	return &prompt, nil
}

func (r *PromptRepository) ListByFlowID(ctx context.Context, flowID string) ([]models.Prompt, error) {
	var prompts []models.Prompt
	err := r.db.NewSelect().Model(&prompts).
		Where("flow_id = ?", flowID).
		Order("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return prompts, nil
}

func (r *PromptRepository) UpdateByID(ctx context.Context, id string, prompt *models.Prompt) (*models.Prompt, error) {
	if prompt == nil {
		return nil, fmt.Errorf("prompt model is nil")
	}

	if err := r.db.NewUpdate().Model(prompt).Where("id = ?", id).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return prompt, nil
}

func (r *PromptRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().Model(&models.Prompt{}).Where("id = ?", id).Exec(ctx)
	return err
}

func (r *PromptRepository) WithTx(tx *bun.Tx) IPromptRepository {
	return &PromptRepository{db: tx}
}

func (r *PromptRepository) WithDB(db *bun.DB) IPromptRepository {
	return &PromptRepository{db: db}
}
