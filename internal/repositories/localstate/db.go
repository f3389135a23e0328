package localstate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dkozyrev/jobport/internal/migrations"
	"github.com/pressly/goose/v3"
)

// Open opens (creating if needed) the local state database at dsn and
// applies the embedded goose migrations. The caller owns the returned
// handle and must register a database/sql driver named "sqlite"
// (modernc.org/sqlite).
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local state db: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate local state db: %w", err)
	}

	return db, nil
}

// RunMigrations applies the embedded migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}
