package db

import (
	"context"
	"fmt"

	"github.com/secondbreakfast/conductor/internal/config"
	"github.com/secondbreakfast/conductor/internal/db/drivers"

	"github.com/uptrace/bun/extra/bundebug"
)

func NewConnection(ctx context.Context, config *config.Config) (drivers.Driver, error) {
	driver, err := openDriver(ctx, config)
	if err != nil {
		return nil, err
	}

	driver.GetDB().AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		bundebug.FromEnv(),
	))

	return driver, nil
}

func openDriver(ctx context.Context, config *config.Config) (drivers.Driver, error) {
	driver := config.DB.Driver

	if driver == "sqlite" {
		return drivers.NewSQLiteDriver(ctx, config.DB.DSN)
	} else if driver == "pg" {
		return drivers.NewPGDriver(ctx, config.DB.DSN)
	}

	return nil, fmt.Errorf("invalid database driver: %s", driver)
}
