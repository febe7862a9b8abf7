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
	ErrPantryNotFound = fmt.Errorf("pantry record not found: %w", services.ErrNotFound)
	ErrPantryExists   = fmt.Errorf("pantry record already exists for that ingredient: %w", services.ErrConflict)
)

const pantryColumns = "id, user_id, name, normalized_name, status, category, preferred_store, created_at, updated_at"

func scanPantry(row pgx.Row) (*models.PantryRecord, error) {
	p := &models.PantryRecord{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.NormalizedName, &p.Status,
		&p.Category, &p.PreferredStore, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PantryRecords returns a user's full pantry inventory
func (db *DB) PantryRecords(ctx context.Context, ownerID int) ([]*models.PantryRecord, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+pantryColumns+`
		FROM pantry_items
		WHERE user_id = $1
		ORDER BY normalized_name ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.PantryRecord
	for rows.Next() {
		p, err := scanPantry(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, rows.Err()
}

// CreatePantryRecord inserts one staple. The normalized name is derived here
// so every write path shares the same key space.
func (db *DB) CreatePantryRecord(ctx context.Context, ownerID int, req *models.CreatePantryRequest) (*models.PantryRecord, error) {
	status := req.Status
	if status == "" {
		status = models.PantryStatusHave
	}

	p, err := scanPantry(db.Pool.QueryRow(ctx, `
		INSERT INTO pantry_items (user_id, name, normalized_name, status, category, preferred_store, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING `+pantryColumns+`
	`, ownerID, req.Name, services.NormalizeIngredient(req.Name), status, req.Category, req.PreferredStore))
	if err != nil {
		if err.Error() == `ERROR: duplicate key value violates unique constraint "unique_pantry_entry" (SQLSTATE 23505)` {
			return nil, ErrPantryExists
		}
		return nil, err
	}
	return p, nil
}

// BulkCreatePantry inserts several staples, skipping ones that already exist
func (db *DB) BulkCreatePantry(ctx context.Context, ownerID int, req *models.BulkPantryRequest) ([]*models.PantryRecord, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var created []*models.PantryRecord
	for _, item := range req.Items {
		status := item.Status
		if status == "" {
			status = models.PantryStatusHave
		}

		p, err := scanPantry(tx.QueryRow(ctx, `
			INSERT INTO pantry_items (user_id, name, normalized_name, status, category, preferred_store, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			ON CONFLICT ON CONSTRAINT unique_pantry_entry DO NOTHING
			RETURNING `+pantryColumns+`
		`, ownerID, item.Name, services.NormalizeIngredient(item.Name), status, item.Category, item.PreferredStore))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue // duplicate, skip
			}
			return nil, err
		}
		created = append(created, p)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdatePantryRecord updates one staple, re-deriving the key when renamed
func (db *DB) UpdatePantryRecord(ctx context.Context, ownerID, id int, req *models.UpdatePantryRequest) (*models.PantryRecord, error) {
	var normalized *string
	if req.Name != nil {
		n := services.NormalizeIngredient(*req.Name)
		normalized = &n
	}

	p, err := scanPantry(db.Pool.QueryRow(ctx, `
		UPDATE pantry_items
		SET name = COALESCE($3, name),
		    normalized_name = COALESCE($4, normalized_name),
		    status = COALESCE($5, status),
		    category = COALESCE($6, category),
		    preferred_store = COALESCE($7, preferred_store),
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+pantryColumns+`
	`, id, ownerID, req.Name, normalized, req.Status, req.Category, req.PreferredStore))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPantryNotFound
		}
		if err.Error() == `ERROR: duplicate key value violates unique constraint "unique_pantry_entry" (SQLSTATE 23505)` {
			return nil, ErrPantryExists
		}
		return nil, err
	}
	return p, nil
}

// DeletePantryRecord removes one staple, owner-scoped
func (db *DB) DeletePantryRecord(ctx context.Context, ownerID, id int) error {
	result, err := db.Pool.Exec(ctx, `
		DELETE FROM pantry_items WHERE id = $1 AND user_id = $2
	`, id, ownerID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrPantryNotFound
	}
	return nil
}

// Defaults returns the owner's learned store routing table keyed by
// normalized ingredient name
func (db *DB) Defaults(ctx context.Context, ownerID int) (map[string]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT normalized_name, store_preference
		FROM ingredient_store_defaults
		WHERE user_id = $1
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defaults := make(map[string]string)
	for rows.Next() {
		var name, store string
		if err := rows.Scan(&name, &store); err != nil {
			return nil, err
		}
		defaults[name] = store
	}
	return defaults, rows.Err()
}

// Upsert writes one learned store preference, last write wins
func (db *DB) Upsert(ctx context.Context, ownerID int, normalizedName, store string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO ingredient_store_defaults (user_id, normalized_name, store_preference, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT ON CONSTRAINT unique_store_default
		DO UPDATE SET store_preference = EXCLUDED.store_preference, updated_at = NOW()
	`, ownerID, normalizedName, store)
	return err
}

// ListStoreDefaults returns the learned routing table as full records
func (db *DB) ListStoreDefaults(ctx context.Context, ownerID int) ([]*models.StoreDefault, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, normalized_name, store_preference, created_at, updated_at
		FROM ingredient_store_defaults
		WHERE user_id = $1
		ORDER BY normalized_name ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defaults []*models.StoreDefault
	for rows.Next() {
		d := &models.StoreDefault{}
		err := rows.Scan(&d.ID, &d.UserID, &d.NormalizedName, &d.StorePreference, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, err
		}
		defaults = append(defaults, d)
	}
	return defaults, rows.Err()
}

// DeleteStoreDefault removes one learned preference
func (db *DB) DeleteStoreDefault(ctx context.Context, ownerID, id int) error {
	result, err := db.Pool.Exec(ctx, `
		DELETE FROM ingredient_store_defaults WHERE id = $1 AND user_id = $2
	`, id, ownerID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("store default not found: %w", services.ErrNotFound)
	}
	return nil
}
