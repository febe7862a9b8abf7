package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hearthware/homeboard/internal/config"
	"github.com/hearthware/homeboard/internal/logger"
)

// DB wraps the connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Connect creates a new database connection pool
func Connect(databaseURL string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.L().Info("database connected")
	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
}

// RunMigrations applies pending migrations in version order
func RunMigrations(db *DB) error {
	ctx := context.Background()

	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for version := 1; version <= len(migrations); version++ {
		migration, ok := migrations[version]
		if !ok {
			return fmt.Errorf("missing migration %d", version)
		}

		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", version, err)
		}

		if exists {
			continue
		}

		_, err = db.Pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", version, err)
		}

		_, err = db.Pool.Exec(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1)",
			version,
		)
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}

		logger.L().Info("migration applied", zap.Int("version", version))
	}

	return nil
}

// EnsureAdminUser creates the admin user if it doesn't exist
func EnsureAdminUser(db *DB, cfg *config.Config) error {
	if cfg.AdminPassword == "" {
		logger.L().Info("ADMIN_PASSWORD not set, skipping admin user creation")
		return nil
	}

	ctx := context.Background()

	var exists bool
	err := db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)",
		cfg.AdminEmail,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}

	if exists {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO users (email, password_hash, username, role)
		VALUES ($1, $2, 'admin', 'admin')
	`, cfg.AdminEmail, string(hashedPassword))
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.L().Info("admin user created", zap.String("email", cfg.AdminEmail))
	return nil
}

// migrations maps version to SQL
var migrations = map[int]string{
	1: migration001,
	2: migration002,
	3: migration003,
	4: migration004,
}

const migration001 = `
-- Enable extensions
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
CREATE EXTENSION IF NOT EXISTS "pg_trgm";

-- Users table
CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    username VARCHAR(50) UNIQUE,
    role VARCHAR(20) DEFAULT 'user',
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    last_login_at TIMESTAMP
);

-- Recipes table
CREATE TABLE IF NOT EXISTS recipes (
    id SERIAL PRIMARY KEY,
    user_id INT REFERENCES users(id) ON DELETE CASCADE,
    name VARCHAR(255) NOT NULL,
    servings INT,
    instructions TEXT,
    label_color VARCHAR(9),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);

-- Recipe ingredients table
CREATE TABLE IF NOT EXISTS recipe_ingredients (
    id SERIAL PRIMARY KEY,
    recipe_id INT REFERENCES recipes(id) ON DELETE CASCADE,
    name VARCHAR(255) NOT NULL,
    quantity VARCHAR(100),
    description TEXT,
    store_preference VARCHAR(100),
    created_at TIMESTAMP DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
CREATE INDEX IF NOT EXISTS idx_recipes_user ON recipes(user_id);
CREATE INDEX IF NOT EXISTS idx_recipe_ingredients_recipe ON recipe_ingredients(recipe_id);
CREATE INDEX IF NOT EXISTS idx_recipe_ingredients_name_trgm ON recipe_ingredients USING gin(name gin_trgm_ops);
`

const migration002 = `
-- Migration 002: Pantry inventory and learned store routing

CREATE TABLE IF NOT EXISTS pantry_items (
    id SERIAL PRIMARY KEY,
    user_id INT REFERENCES users(id) ON DELETE CASCADE,
    name VARCHAR(255) NOT NULL,
    normalized_name VARCHAR(255) NOT NULL,
    status VARCHAR(10) NOT NULL DEFAULT 'have',
    category VARCHAR(100),
    preferred_store VARCHAR(100),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    CONSTRAINT unique_pantry_entry UNIQUE (user_id, normalized_name)
);

CREATE TABLE IF NOT EXISTS ingredient_store_defaults (
    id SERIAL PRIMARY KEY,
    user_id INT REFERENCES users(id) ON DELETE CASCADE,
    normalized_name VARCHAR(255) NOT NULL,
    store_preference VARCHAR(100) NOT NULL,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    CONSTRAINT unique_store_default UNIQUE (user_id, normalized_name)
);

CREATE INDEX IF NOT EXISTS idx_pantry_items_user ON pantry_items(user_id);
CREATE INDEX IF NOT EXISTS idx_pantry_items_norm_trgm ON pantry_items USING gin(normalized_name gin_trgm_ops);
CREATE INDEX IF NOT EXISTS idx_store_defaults_user ON ingredient_store_defaults(user_id);
`

const migration003 = `
-- Migration 003: Lists, list items and reconciliation events

CREATE TABLE IF NOT EXISTS lists (
    id SERIAL PRIMARY KEY,
    user_id INT REFERENCES users(id) ON DELETE CASCADE,
    name VARCHAR(255) NOT NULL,
    icon VARCHAR(16),
    sort_order INT DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    deleted_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS list_items (
    id SERIAL PRIMARY KEY,
    list_id INT REFERENCES lists(id) ON DELETE CASCADE,
    category_id INT,
    name VARCHAR(255) NOT NULL,
    normalized_name VARCHAR(255) NOT NULL,
    description TEXT,
    quantity VARCHAR(255),
    checked BOOLEAN DEFAULT FALSE,
    checked_at TIMESTAMP,
    recipe_sources JSONB,
    created_by INT REFERENCES users(id),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    deleted_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS add_events (
    id SERIAL PRIMARY KEY,
    user_id INT REFERENCES users(id) ON DELETE CASCADE,
    undone_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS add_event_items (
    id SERIAL PRIMARY KEY,
    event_id INT REFERENCES add_events(id) ON DELETE CASCADE,
    item_id INT NOT NULL,
    list_id INT NOT NULL,
    action VARCHAR(20) NOT NULL,
    item_name VARCHAR(255) NOT NULL,
    original_quantity VARCHAR(255),
    original_recipe_sources JSONB,
    added_quantity VARCHAR(255),
    added_recipe_sources JSONB,
    reversed_at TIMESTAMP
);

-- One live unchecked item per normalized key per list; merge targets resolve
-- against this
CREATE UNIQUE INDEX IF NOT EXISTS idx_list_items_live_key
    ON list_items(list_id, normalized_name)
    WHERE checked = FALSE AND deleted_at IS NULL;

CREATE INDEX IF NOT EXISTS idx_lists_user ON lists(user_id) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_list_items_list ON list_items(list_id) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_add_events_user ON add_events(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_add_event_items_event ON add_event_items(event_id);
`

const migration004 = `
-- Migration 004: Recipe text import jobs

CREATE TABLE IF NOT EXISTS import_jobs (
    id UUID PRIMARY KEY,
    user_id INT REFERENCES users(id) ON DELETE CASCADE,
    raw_text TEXT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    parsed_recipe JSONB,
    parse_meta JSONB,
    error_message TEXT,
    archive_key VARCHAR(512),
    processed_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_import_jobs_user ON import_jobs(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_import_jobs_status ON import_jobs(status) WHERE status = 'pending';
`
