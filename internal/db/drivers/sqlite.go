package drivers

import (
	"context"
	"database/sql"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

type SQLiteDriver struct {
	db *bun.DB
}

// NewSQLiteDriver opens a SQLite database. Remote libsql/turso DSNs use
// the libsql driver; file and memory DSNs go through sqliteshim.
func NewSQLiteDriver(ctx context.Context, dsn string) (*SQLiteDriver, error) {
	name := sqliteshim.ShimName
	if strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "wss://") {
		name = "libsql"
	}

	sqldb, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}

	return &SQLiteDriver{db: bun.NewDB(sqldb, sqlitedialect.New())}, nil
}

func (d *SQLiteDriver) GetDB() *bun.DB {
	return d.db
}
