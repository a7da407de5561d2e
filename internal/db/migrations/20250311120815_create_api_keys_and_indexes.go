package migrations

import (
	"context"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().Model((*models.APIKey)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewCreateIndex().
			Model((*models.Run)(nil)).
			Index("idx_runs_status_created_at").
			Column("status", "created_at").
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewCreateIndex().
			Model((*models.PromptRun)(nil)).
			Index("idx_prompt_runs_run_id").
			Column("run_id").
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewCreateIndex().
			Model((*models.Media)(nil)).
			Index("idx_media_source_image_id").
			Column("source_image_id").
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, index := range []string{
			"idx_media_source_image_id",
			"idx_prompt_runs_run_id",
			"idx_runs_status_created_at",
		} {
			if _, err := db.NewDropIndex().Index(index).IfExists().Exec(ctx); err != nil {
				return err
			}
		}

		if _, err := db.NewDropTable().Model((*models.APIKey)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}

		return nil
	})
}
