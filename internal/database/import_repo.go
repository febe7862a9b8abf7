package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hearthware/homeboard/internal/models"
	"github.com/hearthware/homeboard/internal/services"
)

var ErrImportNotFound = fmt.Errorf("import job not found: %w", services.ErrNotFound)

const importColumns = `id, user_id, raw_text, status, parsed_recipe, parse_meta,
	error_message, archive_key, processed_at, created_at, updated_at`

func scanImportJob(row pgx.Row) (*models.ImportJob, error) {
	job := &models.ImportJob{}
	var recipe, meta []byte
	err := row.Scan(
		&job.ID, &job.UserID, &job.RawText, &job.Status, &recipe, &meta,
		&job.ErrorMessage, &job.ArchiveKey, &job.ProcessedAt,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(recipe) > 0 {
		job.ParsedRecipe = &models.ParsedRecipe{}
		if err := json.Unmarshal(recipe, job.ParsedRecipe); err != nil {
			return nil, err
		}
	}
	if len(meta) > 0 {
		job.ParseMeta = &models.ParseMeta{}
		if err := json.Unmarshal(meta, job.ParseMeta); err != nil {
			return nil, err
		}
	}
	return job, nil
}

// CreateImportJob persists a new pending job
func (db *DB) CreateImportJob(ctx context.Context, job *models.ImportJob) error {
	return db.Pool.QueryRow(ctx, `
		INSERT INTO import_jobs (id, user_id, raw_text, status, archive_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`, job.ID, job.UserID, job.RawText, job.Status, job.ArchiveKey).Scan(
		&job.CreatedAt, &job.UpdatedAt,
	)
}

// GetImportJob returns one job, owner-scoped
func (db *DB) GetImportJob(ctx context.Context, ownerID int, id uuid.UUID) (*models.ImportJob, error) {
	job, err := scanImportJob(db.Pool.QueryRow(ctx, `
		SELECT `+importColumns+`
		FROM import_jobs
		WHERE id = $1 AND user_id = $2
	`, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImportNotFound
		}
		return nil, err
	}
	return job, nil
}

// GetImportJobByID returns one job regardless of owner, for workers
func (db *DB) GetImportJobByID(ctx context.Context, id uuid.UUID) (*models.ImportJob, error) {
	job, err := scanImportJob(db.Pool.QueryRow(ctx, `
		SELECT `+importColumns+`
		FROM import_jobs
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImportNotFound
		}
		return nil, err
	}
	return job, nil
}

// MarkImportProcessing claims a job for a worker. Returns false when the job
// is gone or already terminal.
func (db *DB) MarkImportProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := db.Pool.Exec(ctx, `
		UPDATE import_jobs
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ($3, $2)
	`, id, models.ImportStatusProcessing, models.ImportStatusPending)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// CompleteImportJob records the parsed result. The status guard makes the
// write a no-op when cancellation or failure got there first.
func (db *DB) CompleteImportJob(ctx context.Context, id uuid.UUID, recipe *models.ParsedRecipe, meta *models.ParseMeta) (bool, error) {
	recipeJSON, err := json.Marshal(recipe)
	if err != nil {
		return false, err
	}
	var metaJSON []byte
	if meta != nil {
		if metaJSON, err = json.Marshal(meta); err != nil {
			return false, err
		}
	}

	result, err := db.Pool.Exec(ctx, `
		UPDATE import_jobs
		SET status = $2, parsed_recipe = $3, parse_meta = $4, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ($5, $6)
	`, id, models.ImportStatusCompleted, recipeJSON, metaJSON,
		models.ImportStatusPending, models.ImportStatusProcessing)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// FailImportJob records a failure message under the same status guard
func (db *DB) FailImportJob(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	result, err := db.Pool.Exec(ctx, `
		UPDATE import_jobs
		SET status = $2, error_message = $3, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)
	`, id, models.ImportStatusFailed, message,
		models.ImportStatusPending, models.ImportStatusProcessing)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// DeleteImportJob removes a job, owner-scoped, returning the deleted row or
// nil when there was nothing to delete
func (db *DB) DeleteImportJob(ctx context.Context, ownerID int, id uuid.UUID) (*models.ImportJob, error) {
	job, err := scanImportJob(db.Pool.QueryRow(ctx, `
		DELETE FROM import_jobs
		WHERE id = $1 AND user_id = $2
		RETURNING `+importColumns+`
	`, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

// PendingImportJobIDs lists jobs never picked up, oldest first
func (db *DB) PendingImportJobIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id FROM import_jobs
		WHERE status = $1
		ORDER BY created_at ASC
	`, models.ImportStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StaleProcessingImportJobIDs lists jobs claimed as processing but not
// touched since cutoff. These were orphaned by a worker that died mid-poll;
// MarkImportProcessing accepts the re-claim.
func (db *DB) StaleProcessingImportJobIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id FROM import_jobs
		WHERE status = $1 AND updated_at < $2
		ORDER BY created_at ASC
	`, models.ImportStatusProcessing, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateRecipeFromImport creates the recipe and removes the job in one
// transaction, so confirming twice cannot duplicate the recipe
func (db *DB) CreateRecipeFromImport(ctx context.Context, ownerID int, jobID uuid.UUID, req *models.CreateRecipeRequest) (*models.Recipe, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var status models.ImportStatus
	err = tx.QueryRow(ctx, `
		SELECT status FROM import_jobs
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, jobID, ownerID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImportNotFound
		}
		return nil, err
	}
	if status != models.ImportStatusCompleted {
		return nil, fmt.Errorf("import %s is %s, not completed: %w", jobID, status, services.ErrConflict)
	}

	recipe, err := createRecipeTx(ctx, tx, ownerID, req)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM import_jobs WHERE id = $1", jobID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return recipe, nil
}
