package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/uptrace/bun"
)

type IMediaRepository interface {
	Repository[models.Media]
	WithTx(tx *bun.Tx) IMediaRepository
	WithDB(db *bun.DB) IMediaRepository
	List(ctx context.Context) ([]models.Media, error)
	FindVideoBySourceImage(ctx context.Context, imageID string) (*models.Media, error)
}

type MediaRepository struct {
	db bun.IDB
}

func NewMediaRepository(db *bun.DB) IMediaRepository {
	return &MediaRepository{db: db}
}

func (r *MediaRepository) Create(ctx context.Context, media *models.Media) (*models.Media, error) {
	if media == nil {
		return nil, fmt.Errorf("media model is nil")
	}

	if err := r.db.NewInsert().Model(media).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return media, nil
}

func (r *MediaRepository) GetByID(ctx context.Context, id string) (*models.Media, error) {
	var media models.Media
	if err := r.db.NewSelect().Model(&media).Where("m.id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}

	return &media, nil
}

func (r *MediaRepository) List(ctx context.Context) ([]models.Media, error) {
	var media []models.Media
	if err := r.db.NewSelect().Model(&media).Order("created_at DESC").Scan(ctx); err != nil {
		return nil, err
	}

	return media, nil
}

// FindVideoBySourceImage returns the video generated from the given
// image, or nil when none exists yet.
func (r *MediaRepository) FindVideoBySourceImage(ctx context.Context, imageID string) (*models.Media, error) {
	var media models.Media
	err := r.db.NewSelect().Model(&media).
		Where("type = ?", models.MediaTypeVideo).
		Where("source_image_id = ?", imageID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &media, nil
}

func (r *MediaRepository) UpdateByID(ctx context.Context, id string, media *models.Media) (*models.Media, error) {
	if media == nil {
		return nil, fmt.Errorf("media model is nil")
	}

	if err := r.db.NewUpdate().Model(media).Where("id = ?", id).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return media, nil
}

func (r *MediaRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().Model(&models.Media{}).Where("id = ?", id).Exec(ctx)
	return err
}

func (r *MediaRepository) WithTx(tx *bun.Tx) IMediaRepository {
	return &MediaRepository{db: tx}
}

func (r *MediaRepository) WithDB(db *bun.DB) IMediaRepository {
	return &MediaRepository{db: db}
}
