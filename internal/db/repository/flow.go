package repository

import (
	"context"
	"fmt"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/uptrace/bun"
)

type IFlowRepository interface {
	Repository[models.Flow]
	WithTx(tx *bun.Tx) IFlowRepository
	WithDB(db *bun.DB) IFlowRepository
	GetWithPrompts(ctx context.Context, id string) (*models.Flow, error)
	List(ctx context.Context) ([]models.Flow, error)
	DeleteWithPrompts(ctx context.Context, id string) error
}

type FlowRepository struct {
	db bun.IDB
}

func NewFlowRepository(db *bun.DB) IFlowRepository {
	return &FlowRepository{db: db}
}

func (r *FlowRepository) Create(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	if flow == nil {
		return nil, fmt.Errorf("flow model is nil")
	}

	if err := r.db.NewInsert().Model(flow).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return flow, nil
}

func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	var flow models.Flow
	if err := r.db.NewSelect().Model(&flow).Where("f.id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}

	return &flow, nil
}

func (r *FlowRepository) GetWithPrompts(ctx context.Context, id string) (*models.Flow, error) {
	var flow models.Flow
	err := r.db.NewSelect().Model(&flow).
		Relation("Prompts", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("f.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return &flow, nil
}

func (r *FlowRepository) List(ctx context.Context) ([]models.Flow, error) {
	var flows []models.Flow
	if err := r.db.NewSelect().Model(&flows).Order("created_at DESC").Scan(ctx); err != nil {
		return nil, err
	}

	return flows, nil
}

func (r *FlowRepository) UpdateByID(ctx context.Context, id string, flow *models.Flow) (*models.Flow, error) {
	if flow == nil {
		return nil, fmt.Errorf("flow model is nil")
	}

	if err := r.db.NewUpdate().Model(flow).Where("id = ?", id).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return flow, nil
}

func (r *FlowRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().Model(&models.Flow{}).Where("id = ?", id).Exec(ctx)
	return err
}

// DeleteWithPrompts removes the flow and its prompts in one transaction.
func (r *FlowRepository) DeleteWithPrompts(ctx context.Context, id string) error {
	db, ok := r.db.(*bun.DB)
	if !ok {
		return fmt.Errorf("delete with prompts requires a root db handle")
	}

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model(&models.Prompt{}).Where("flow_id = ?", id).Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewDelete().Model(&models.Flow{}).Where("id = ?", id).Exec(ctx)
		return err
	})
}

func (r *FlowRepository) WithTx(tx *bun.Tx) IFlowRepository {
	return &FlowRepository{db: tx}
}

func (r *FlowRepository) WithDB(db *bun.DB) IFlowRepository {
	return &FlowRepository{db: db}
}
