package migrate

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dco5/users-service/migrations"
)

func newMigrator(t *testing.T) *Migrator {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func stubGoose(t *testing.T, up, down, reset func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) {
	t.Helper()
	origUp, origDown, origReset := gooseUpContext, gooseDownContext, gooseResetContext
	if up != nil {
		gooseUpContext = up
	}
	if down != nil {
		gooseDownContext = down
	}
	if reset != nil {
		gooseResetContext = reset
	}
	t.Cleanup(func() {
		gooseUpContext, gooseDownContext, gooseResetContext = origUp, origDown, origReset
	})
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrations.Migrations, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_create_users.sql", "00002_users_unique_constraints.sql"}, files)

	for _, name := range files {
		body, err := fs.ReadFile(migrations.Migrations, name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", name)
		assert.Contains(t, string(body), "-- +goose Down", name)
	}

	constraints, err := fs.ReadFile(migrations.Migrations, "00002_users_unique_constraints.sql")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(constraints), "users_email_key"))
	assert.True(t, strings.Contains(string(constraints), "users_username_key"))
}

func TestUp_Success(t *testing.T) {
	var gotDir string
	stubGoose(t, func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}, nil, nil)

	m := newMigrator(t)
	require.NoError(t, m.Up(context.Background()))
	assert.Equal(t, ".", gotDir)
}

func TestUp_Error(t *testing.T) {
	stubGoose(t, func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}, nil, nil)

	m := newMigrator(t)
	err := m.Up(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestDown_Error(t *testing.T) {
	stubGoose(t, nil, func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("no migrations")
	}, nil)

	m := newMigrator(t)
	err := m.Down(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to revert migration")
}

func TestRecreate_ResetsThenApplies(t *testing.T) {
	var calls []string
	stubGoose(t,
		func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
			calls = append(calls, "up")
			return nil
		},
		nil,
		func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
			calls = append(calls, "reset")
			return nil
		},
	)

	m := newMigrator(t)
	require.NoError(t, m.Recreate(context.Background()))
	assert.Equal(t, []string{"reset", "up"}, calls)
}

func TestRecreate_StopsOnResetError(t *testing.T) {
	upCalled := false
	stubGoose(t,
		func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
			upCalled = true
			return nil
		},
		nil,
		func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
			return errors.New("locked")
		},
	)

	m := newMigrator(t)
	require.Error(t, m.Recreate(context.Background()))
	assert.False(t, upCalled)
}
