// Package migrate applies the embedded schema migrations with goose.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/dco5/users-service/migrations"
)

// Migrator runs goose commands against a single database.
type Migrator struct {
	db *sql.DB
}

// Open connects to databaseURL through database/sql for goose.
func Open(ctx context.Context, databaseURL string) (*Migrator, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db), nil
}

// New wraps an existing connection.
func New(db *sql.DB) *Migrator {
	goose.SetBaseFS(migrations.Migrations)
	return &Migrator{db: db}
}

// gooseUpContext, gooseDownContext and gooseResetContext are seams for tests.
var (
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
	gooseDownContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.DownContext(ctx, db, dir, opts...)
	}
	gooseResetContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.ResetContext(ctx, db, dir, opts...)
	}
)

func setDialect() error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if err := setDialect(); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Down reverts the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := setDialect(); err != nil {
		return err
	}
	if err := gooseDownContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("failed to revert migration: %w", err)
	}
	return nil
}

// Recreate rolls back every migration and applies them again,
// leaving an empty users table.
func (m *Migrator) Recreate(ctx context.Context) error {
	if err := setDialect(); err != nil {
		return err
	}
	if err := gooseResetContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("failed to reset migrations: %w", err)
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (m *Migrator) Close() error {
	return m.db.Close()
}
