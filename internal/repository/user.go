package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dco5/users-service/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUsernameExists      = errors.New("username already exists")
	ErrEmailExists         = errors.New("email already exists")
	ErrConstraintViolation = errors.New("user violates table constraint")
)

// Constraint names from migrations/00002_users_unique_constraints.sql.
const (
	usernameUniqueConstraint = "users_username_key"
	emailUniqueConstraint    = "users_email_key"
)

// SQLSTATE codes checked when translating insert failures.
const (
	pgUniqueViolation      = "23505"
	pgStringTooLong        = "22001"
	pgIntegrityClassPrefix = "23"
)

const userColumns = `id, username, email, active, created_at`

// CreateUser inserts a new user and fills in the store-assigned fields.
// The insert runs in its own transaction, rolled back on any failure.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (username, email, active)
		VALUES ($1, $2, $3)
		RETURNING id, active, created_at
	`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query,
			user.Username,
			user.Email,
			user.Active,
		).Scan(&user.ID, &user.Active, &user.CreatedAt)
	})
	if err != nil {
		if translated := translateWriteError(err); translated != nil {
			return translated
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by their email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// ListUsers returns every user in insertion order.
func (r *Repository) ListUsers(ctx context.Context) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// SeedUsers inserts the given users in a single transaction.
func (r *Repository) SeedUsers(ctx context.Context, users []*model.User) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, user := range users {
			err := tx.QueryRow(ctx, `
				INSERT INTO users (username, email, active)
				VALUES ($1, $2, $3)
				RETURNING id, active, created_at
			`, user.Username, user.Email, user.Active).Scan(&user.ID, &user.Active, &user.CreatedAt)
			if err != nil {
				if translated := translateWriteError(err); translated != nil {
					return fmt.Errorf("seed %q: %w", user.Username, translated)
				}
				return fmt.Errorf("seed %q: %w", user.Username, err)
			}
		}
		return nil
	})
}

// ResetUsers removes every user and restarts the id sequence.
func (r *Repository) ResetUsers(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `TRUNCATE TABLE users RESTART IDENTITY`); err != nil {
		return fmt.Errorf("failed to reset users: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Active,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

// translateWriteError maps PostgreSQL constraint failures to repository errors.
// It returns nil when err is not a constraint failure.
func translateWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}

	switch {
	case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == usernameUniqueConstraint:
		return ErrUsernameExists
	case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == emailUniqueConstraint:
		return ErrEmailExists
	case pgErr.Code == pgStringTooLong, strings.HasPrefix(pgErr.Code, pgIntegrityClassPrefix):
		return fmt.Errorf("%w: %s", ErrConstraintViolation, pgErr.Message)
	default:
		return nil
	}
}
