package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LF-108/BestNotes/pkg/utils"
)

// uniqueViolation is the PostgreSQL error code for duplicate primary keys.
const uniqueViolation = "23505"

// Repository is the PostgreSQL-backed credential store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Exists reports whether the username is known.
func (r *Repository) Exists(ctx context.Context, username string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

// Ensure adds the username with no password if it is unknown.
func (r *Repository) Ensure(ctx context.Context, username string) error {
	const q = `INSERT INTO users (username, password_hash) VALUES ($1, '') ON CONFLICT (username) DO NOTHING`
	if _, err := r.pool.Exec(ctx, q, username); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// Register creates a user with a bcrypt-hashed password.
func (r *Repository) Register(ctx context.Context, username, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	const q = `INSERT INTO users (username, password_hash) VALUES ($1, $2)`
	if _, err := r.pool.Exec(ctx, q, username, hash); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrUsernameTaken
		}
		return fmt.Errorf("register user: %w", err)
	}
	return nil
}

// Authenticate verifies a username/password pair.
func (r *Repository) Authenticate(ctx context.Context, username, password string) error {
	const q = `SELECT password_hash FROM users WHERE username = $1`
	var hash string
	err := r.pool.QueryRow(ctx, q, username).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("authenticate user: %w", err)
	}
	if !utils.CheckPassword(password, hash) {
		return ErrInvalidPassword
	}
	return nil
}
