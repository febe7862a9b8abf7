package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/hearthware/homeboard/internal/models"
)

// ListAddEvents returns a user's recent reconciliation runs, newest first,
// with their entries attached
func (db *DB) ListAddEvents(ctx context.Context, ownerID, limit int) ([]*models.AddEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, undone_at, created_at
		FROM add_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.AddEvent
	byID := make(map[int]*models.AddEvent)
	for rows.Next() {
		e := &models.AddEvent{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.UndoneAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return events, nil
	}

	ids := make([]int, 0, len(events))
	for id := range byID {
		ids = append(ids, id)
	}

	entryRows, err := db.Pool.Query(ctx, `
		SELECT id, event_id, item_id, list_id, action, item_name,
			original_quantity, original_recipe_sources,
			added_quantity, added_recipe_sources, reversed_at
		FROM add_event_items
		WHERE event_id = ANY($1)
		ORDER BY event_id, id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer entryRows.Close()

	for entryRows.Next() {
		entry, err := scanEventItem(entryRows)
		if err != nil {
			return nil, err
		}
		if e, ok := byID[entry.EventID]; ok {
			e.Items = append(e.Items, *entry)
		}
	}
	return events, entryRows.Err()
}

// GetAddEvent returns one run with its entries, owner-scoped
func (db *DB) GetAddEvent(ctx context.Context, ownerID, eventID int) (*models.AddEvent, error) {
	e := &models.AddEvent{}
	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, undone_at, created_at
		FROM add_events
		WHERE id = $1 AND user_id = $2
	`, eventID, ownerID).Scan(&e.ID, &e.UserID, &e.UndoneAt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, event_id, item_id, list_id, action, item_name,
			original_quantity, original_recipe_sources,
			added_quantity, added_recipe_sources, reversed_at
		FROM add_event_items
		WHERE event_id = $1
		ORDER BY id
	`, e.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEventItem(rows)
		if err != nil {
			return nil, err
		}
		e.Items = append(e.Items, *entry)
	}
	return e, rows.Err()
}
