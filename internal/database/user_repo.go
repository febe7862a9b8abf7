package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hearthware/homeboard/internal/models"
	"github.com/hearthware/homeboard/internal/services"
)

var (
	ErrUserNotFound   = fmt.Errorf("user not found: %w", services.ErrNotFound)
	ErrEmailExists    = fmt.Errorf("email already exists: %w", services.ErrConflict)
	ErrUsernameExists = fmt.Errorf("username already exists: %w", services.ErrConflict)
)

// CreateUser creates a new user
func (db *DB) CreateUser(ctx context.Context, email, passwordHash string, username *string) (*models.User, error) {
	user := &models.User{}

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, username, role, created_at, updated_at)
		VALUES ($1, $2, $3, 'user', NOW(), NOW())
		RETURNING id, email, password_hash, username, role, created_at, updated_at, last_login_at
	`, email, passwordHash, username).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Username,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLoginAt,
	)

	if err != nil {
		// Check for unique constraint violations
		if err.Error() == `ERROR: duplicate key value violates unique constraint "users_email_key" (SQLSTATE 23505)` {
			return nil, ErrEmailExists
		}
		if err.Error() == `ERROR: duplicate key value violates unique constraint "users_username_key" (SQLSTATE 23505)` {
			return nil, ErrUsernameExists
		}
		return nil, err
	}

	return user, nil
}

// GetUserByID retrieves a user by their ID
func (db *DB) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	user := &models.User{}

	err := db.Pool.QueryRow(ctx, `
		SELECT id, email, password_hash, username, role, created_at, updated_at, last_login_at
		FROM users
		WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Username,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLoginAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// GetUserByEmail retrieves a user by their email
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}

	err := db.Pool.QueryRow(ctx, `
		SELECT id, email, password_hash, username, role, created_at, updated_at, last_login_at
		FROM users
		WHERE email = $1
	`, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Username,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLoginAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// UpdateLastLogin records a successful login
func (db *DB) UpdateLastLogin(ctx context.Context, id int) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE users SET last_login_at = NOW() WHERE id = $1
	`, id)
	return err
}
