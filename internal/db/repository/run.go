package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/uptrace/bun"
)

type IRunRepository interface {
	Repository[models.Run]
	WithTx(tx *bun.Tx) IRunRepository
	WithDB(db *bun.DB) IRunRepository
	GetWithFlowAndPrompts(ctx context.Context, id string) (*models.Run, error)
	GetWithPromptRuns(ctx context.Context, id string) (*models.Run, error)
	ListByFlowID(ctx context.Context, flowID string) ([]models.Run, error)
	List(ctx context.Context) ([]models.Run, error)
	MarkTimedOutBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RunRepository struct {
	db bun.IDB
}

func NewRunRepository(db *bun.DB) IRunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(ctx context.Context, run *models.Run) (*models.Run, error) {
	if run == nil {
		return nil, fmt.Errorf("run model is nil")
	}

	if err := r.db.NewInsert().Model(run).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return run, nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	if err := r.db.NewSelect().Model(&run).Where("r.id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}

	return &run, nil
}

// GetWithFlowAndPrompts loads the run together with its flow and the
// flow's prompts ordered by position.
func (r *RunRepository) GetWithFlowAndPrompts(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	err := r.db.NewSelect().Model(&run).
		Relation("Flow").
		Relation("Flow.Prompts", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("r.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return &run, nil
}

func (r *RunRepository) GetWithPromptRuns(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	err := r.db.NewSelect().Model(&run).
		Relation("PromptRuns", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("created_at ASC")
		}).
		Where("r.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return &run, nil
}

func (r *RunRepository) ListByFlowID(ctx context.Context, flowID string) ([]models.Run, error) {
	var runs []models.Run
	err := r.db.NewSelect().Model(&runs).
		Where("flow_id = ?", flowID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return runs, nil
}

func (r *RunRepository) List(ctx context.Context) ([]models.Run, error) {
	var runs []models.Run
	if err := r.db.NewSelect().Model(&runs).Order("created_at DESC").Scan(ctx); err != nil {
		return nil, err
	}

	return runs, nil
}

func (r *RunRepository) UpdateByID(ctx context.Context, id string, run *models.Run) (*models.Run, error) {
	if run == nil {
		return nil, fmt.Errorf("run model is nil")
	}

	if err := r.db.NewUpdate().Model(run).Where("id = ?", id).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return run, nil
}

func (r *RunRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().Model(&models.Run{}).Where("id = ?", id).Exec(ctx)
	return err
}

// MarkTimedOutBefore flips runs still pending from before the cutoff to
// timed-out. Returns the number of runs swept.
func (r *RunRepository) MarkTimedOutBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.NewUpdate().Model(&models.Run{}).
		Set("status = ?", models.RunStatusTimedOut).
		Set("completed_at = ?", time.Now()).
		Set("updated_at = ?", time.Now()).
		Where("status = ?", models.RunStatusPending).
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (r *RunRepository) WithTx(tx *bun.Tx) IRunRepository {
	return &RunRepository{db: tx}
}

func (r *RunRepository) WithDB(db *bun.DB) IRunRepository {
	return &RunRepository{db: db}
}
