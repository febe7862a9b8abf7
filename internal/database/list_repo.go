package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hearthware/homeboard/internal/models"
	"github.com/hearthware/homeboard/internal/services"
)

var (
	ErrListNotFound  = fmt.Errorf("list not found: %w", services.ErrNotFound)
	ErrItemNotFound  = fmt.Errorf("list item not found: %w", services.ErrNotFound)
	ErrEventNotFound = fmt.Errorf("add event not found: %w", services.ErrNotFound)
)

// Destination list icons, assigned when a reconciliation run first needs a
// list that does not exist yet
const (
	groceryIcon   = "🛒"
	specialtyIcon = "🏪"
)

// lockOwner serializes all list mutations for one user within the current
// transaction. Two concurrent runs for the same owner queue up; runs for
// different owners proceed in parallel.
func lockOwner(ctx context.Context, tx pgx.Tx, ownerID int) error {
	_, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(ownerID))
	return err
}

// ListLists returns all live lists for a user with their live items
func (db *DB) ListLists(ctx context.Context, ownerID int) ([]*models.ListWithItems, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, name, icon, sort_order, created_at, updated_at, deleted_at
		FROM lists
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY sort_order ASC, name ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lists []*models.ListWithItems
	byID := make(map[int]*models.ListWithItems)
	for rows.Next() {
		l := &models.ListWithItems{}
		err := rows.Scan(
			&l.ID, &l.OwnerID, &l.Name, &l.Icon, &l.SortOrder,
			&l.CreatedAt, &l.UpdatedAt, &l.DeletedAt,
		)
		if err != nil {
			return nil, err
		}
		l.Items = []models.Item{}
		lists = append(lists, l)
		byID[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return lists, nil
	}

	ids := make([]int, 0, len(lists))
	for id := range byID {
		ids = append(ids, id)
	}

	itemRows, err := db.Pool.Query(ctx, `
		SELECT id, list_id, category_id, name, description, quantity, checked, checked_at,
			recipe_sources, created_by, created_at, updated_at, deleted_at
		FROM list_items
		WHERE list_id = ANY($1) AND deleted_at IS NULL
		ORDER BY list_id, checked ASC, created_at ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		item, err := scanItem(itemRows)
		if err != nil {
			return nil, err
		}
		if l, ok := byID[item.ListID]; ok {
			l.Items = append(l.Items, *item)
		}
	}
	return lists, itemRows.Err()
}

// GetList returns one live list with its live items, owner-scoped
func (db *DB) GetList(ctx context.Context, ownerID, id int) (*models.ListWithItems, error) {
	l := &models.ListWithItems{}
	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, name, icon, sort_order, created_at, updated_at, deleted_at
		FROM lists
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, ownerID).Scan(
		&l.ID, &l.OwnerID, &l.Name, &l.Icon, &l.SortOrder,
		&l.CreatedAt, &l.UpdatedAt, &l.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListNotFound
		}
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, list_id, category_id, name, description, quantity, checked, checked_at,
			recipe_sources, created_by, created_at, updated_at, deleted_at
		FROM list_items
		WHERE list_id = $1 AND deleted_at IS NULL
		ORDER BY checked ASC, created_at ASC
	`, l.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	l.Items = []models.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		l.Items = append(l.Items, *item)
	}
	return l, rows.Err()
}

// SetItemChecked toggles an item's checked state, owner-scoped through its
// list. Checking frees the item's merge key for future runs.
func (db *DB) SetItemChecked(ctx context.Context, ownerID, itemID int, checked bool) (*models.Item, error) {
	row := db.Pool.QueryRow(ctx, `
		UPDATE list_items li
		SET checked = $3,
		    checked_at = CASE WHEN $3 THEN NOW() ELSE NULL END,
		    updated_at = NOW()
		FROM lists l
		WHERE li.id = $1 AND l.id = li.list_id AND l.user_id = $2
			AND li.deleted_at IS NULL AND l.deleted_at IS NULL
		RETURNING li.id, li.list_id, li.category_id, li.name, li.description, li.quantity,
			li.checked, li.checked_at, li.recipe_sources, li.created_by,
			li.created_at, li.updated_at, li.deleted_at
	`, itemID, ownerID, checked)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// DeleteItem soft-deletes one item, owner-scoped through its list
func (db *DB) DeleteItem(ctx context.Context, ownerID, itemID int) error {
	result, err := db.Pool.Exec(ctx, `
		UPDATE list_items li
		SET deleted_at = NOW(), updated_at = NOW()
		FROM lists l
		WHERE li.id = $1 AND l.id = li.list_id AND l.user_id = $2
			AND li.deleted_at IS NULL AND l.deleted_at IS NULL
	`, itemID, ownerID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// UncheckedKeys returns, per list name, the normalized keys of live unchecked
// items
func (db *DB) UncheckedKeys(ctx context.Context, ownerID int) (map[string]map[string]struct{}, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT l.name, li.normalized_name
		FROM list_items li
		JOIN lists l ON l.id = li.list_id
		WHERE l.user_id = $1 AND l.deleted_at IS NULL
			AND li.deleted_at IS NULL AND li.checked = FALSE
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]map[string]struct{})
	for rows.Next() {
		var listName, key string
		if err := rows.Scan(&listName, &key); err != nil {
			return nil, err
		}
		if _, ok := keys[listName]; !ok {
			keys[listName] = make(map[string]struct{})
		}
		keys[listName][key] = struct{}{}
	}
	return keys, rows.Err()
}

// CommitRun applies a reconciliation plan atomically: every group either
// merges into a live unchecked item with the same key or creates a new item,
// and exactly one add event records the whole run for undo. All of it runs
// under the owner's advisory lock so concurrent runs serialize.
func (db *DB) CommitRun(ctx context.Context, ownerID int, plan *models.ReconcilePlan) (*models.AddToListResult, error) {
	// A run where everything was skipped changes nothing; recording an empty
	// event would only clutter the undo history
	if len(plan.Groups) == 0 {
		return &models.AddToListResult{ItemsSkipped: plan.SkippedCount}, nil
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockOwner(ctx, tx, ownerID); err != nil {
		return nil, err
	}

	var eventID int
	err = tx.QueryRow(ctx, `
		INSERT INTO add_events (user_id, created_at) VALUES ($1, NOW())
		RETURNING id
	`, ownerID).Scan(&eventID)
	if err != nil {
		return nil, err
	}

	result := &models.AddToListResult{
		EventID:      eventID,
		ItemsSkipped: plan.SkippedCount,
	}

	listIDs := make(map[string]int)
	for _, group := range plan.Groups {
		listID, err := getOrCreateListTx(ctx, tx, ownerID, group.Store, listIDs)
		if err != nil {
			return nil, err
		}

		// Look for a live unchecked item with the same key to merge into
		var (
			itemID      int
			curQuantity *string
			curSources  []byte
		)
		err = tx.QueryRow(ctx, `
			SELECT id, quantity, recipe_sources
			FROM list_items
			WHERE list_id = $1 AND normalized_name = $2
				AND checked = FALSE AND deleted_at IS NULL
		`, listID, group.NormalizedKey).Scan(&itemID, &curQuantity, &curSources)

		switch {
		case err == nil:
			if err := mergeItemTx(ctx, tx, eventID, listID, itemID, curQuantity, curSources, &group); err != nil {
				return nil, err
			}
			result.ItemsMerged++

		case errors.Is(err, pgx.ErrNoRows):
			if err := createItemTx(ctx, tx, eventID, listID, ownerID, &group); err != nil {
				return nil, err
			}
			if group.Store == services.DefaultStoreLabel {
				result.GroceryItemsAdded++
			} else {
				result.SpecialtyItemsAdded++
			}

		default:
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// getOrCreateListTx resolves the destination list for a store label, reviving
// nothing: soft-deleted lists stay deleted and a fresh list takes their place
func getOrCreateListTx(ctx context.Context, tx pgx.Tx, ownerID int, store string, cache map[string]int) (int, error) {
	if id, ok := cache[store]; ok {
		return id, nil
	}

	var id int
	err := tx.QueryRow(ctx, `
		SELECT id FROM lists
		WHERE user_id = $1 AND name = $2 AND deleted_at IS NULL
	`, ownerID, store).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		icon := specialtyIcon
		if store == services.DefaultStoreLabel {
			icon = groceryIcon
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO lists (user_id, name, icon, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			RETURNING id
		`, ownerID, store, icon).Scan(&id)
	}
	if err != nil {
		return 0, err
	}

	cache[store] = id
	return id, nil
}

// createItemTx inserts a new item for a plan group and records a "created"
// event entry
func createItemTx(ctx context.Context, tx pgx.Tx, eventID, listID, ownerID int, group *models.PlanGroup) error {
	sources, err := json.Marshal(group.Sources)
	if err != nil {
		return err
	}

	var itemID int
	err = tx.QueryRow(ctx, `
		INSERT INTO list_items (list_id, name, normalized_name, description, quantity, recipe_sources, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id
	`, listID, group.Name, group.NormalizedKey, group.Description, group.Quantity, sources, ownerID).Scan(&itemID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO add_event_items (event_id, item_id, list_id, action, item_name, added_quantity, added_recipe_sources)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, eventID, itemID, listID, models.EventActionCreated, group.Name, group.Quantity, sources)
	return err
}

// mergeItemTx folds a plan group into an existing unchecked item, recording
// the exact pre-merge state so undo can restore it
func mergeItemTx(ctx context.Context, tx pgx.Tx, eventID, listID, itemID int, curQuantity *string, curSources []byte, group *models.PlanGroup) error {
	var existing []models.RecipeSource
	if len(curSources) > 0 {
		if err := json.Unmarshal(curSources, &existing); err != nil {
			return err
		}
	}

	merged, err := json.Marshal(services.UnionSources(existing, group.Sources))
	if err != nil {
		return err
	}
	added, err := json.Marshal(group.Sources)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE list_items
		SET quantity = $2, recipe_sources = $3, updated_at = NOW()
		WHERE id = $1
	`, itemID, services.CombineQuantities(curQuantity, group.Quantity), merged)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO add_event_items (event_id, item_id, list_id, action, item_name,
			original_quantity, original_recipe_sources, added_quantity, added_recipe_sources)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, eventID, itemID, listID, models.EventActionMerged, group.Name,
		curQuantity, curSources, group.Quantity, added)
	return err
}

// UndoRun reverses one add event: created items are soft-deleted, merged
// items get their pre-merge quantity and provenance back. Entries whose item
// has since been checked, deleted or removed are reported as failures and the
// event stays open so a later retry can finish the rest.
func (db *DB) UndoRun(ctx context.Context, ownerID, eventID int) ([]models.UndoFailure, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockOwner(ctx, tx, ownerID); err != nil {
		return nil, err
	}

	var undoneAt *string
	err = tx.QueryRow(ctx, `
		SELECT undone_at::text FROM add_events
		WHERE id = $1 AND user_id = $2
	`, eventID, ownerID).Scan(&undoneAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if undoneAt != nil {
		return nil, fmt.Errorf("event %d already undone: %w", eventID, services.ErrNotFound)
	}

	entries, err := loadEventEntriesTx(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}

	var failures []models.UndoFailure
	for _, entry := range entries {
		if entry.ReversedAt != nil {
			continue
		}
		if reason := reverseEntryTx(ctx, tx, &entry); reason != "" {
			failures = append(failures, models.UndoFailure{
				EventItemID: entry.ID,
				ItemID:      entry.ItemID,
				ItemName:    entry.ItemName,
				Reason:      reason,
			})
			continue
		}
		if _, err := tx.Exec(ctx,
			"UPDATE add_event_items SET reversed_at = NOW() WHERE id = $1",
			entry.ID,
		); err != nil {
			return nil, err
		}
	}

	if len(failures) == 0 {
		if _, err := tx.Exec(ctx,
			"UPDATE add_events SET undone_at = NOW() WHERE id = $1",
			eventID,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return failures, nil
}

// reverseEntryTx undoes one event entry, returning a failure reason or ""
func reverseEntryTx(ctx context.Context, tx pgx.Tx, entry *models.AddEventItem) string {
	var (
		checked bool
		deleted *string
	)
	err := tx.QueryRow(ctx, `
		SELECT checked, deleted_at::text FROM list_items WHERE id = $1
	`, entry.ItemID).Scan(&checked, &deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return "item no longer exists"
	}
	if err != nil {
		return err.Error()
	}
	if deleted != nil {
		return "item was deleted"
	}
	if checked {
		return "item already checked off"
	}

	switch entry.Action {
	case models.EventActionCreated:
		if _, err := tx.Exec(ctx, `
			UPDATE list_items SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1
		`, entry.ItemID); err != nil {
			return err.Error()
		}

	case models.EventActionMerged:
		original, err := json.Marshal(entry.OriginalSources)
		if err != nil {
			return err.Error()
		}
		if _, err := tx.Exec(ctx, `
			UPDATE list_items
			SET quantity = $2, recipe_sources = $3, updated_at = NOW()
			WHERE id = $1
		`, entry.ItemID, entry.OriginalQuantity, original); err != nil {
			return err.Error()
		}

	default:
		return fmt.Sprintf("unknown event action %q", entry.Action)
	}

	return ""
}

// loadEventEntriesTx reads all entries for an event inside the transaction
func loadEventEntriesTx(ctx context.Context, tx pgx.Tx, eventID int) ([]models.AddEventItem, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id, item_id, list_id, action, item_name,
			original_quantity, original_recipe_sources,
			added_quantity, added_recipe_sources, reversed_at
		FROM add_event_items
		WHERE event_id = $1
		ORDER BY id
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AddEventItem
	for rows.Next() {
		entry, err := scanEventItem(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// scanItem reads one list_items row, decoding the provenance JSON
func scanItem(row pgx.Row) (*models.Item, error) {
	item := &models.Item{}
	var sources []byte
	err := row.Scan(
		&item.ID, &item.ListID, &item.CategoryID, &item.Name, &item.Description,
		&item.Quantity, &item.Checked, &item.CheckedAt, &sources,
		&item.CreatedBy, &item.CreatedAt, &item.UpdatedAt, &item.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &item.RecipeSources); err != nil {
			return nil, err
		}
	}
	return item, nil
}

// scanEventItem reads one add_event_items row, decoding both provenance blobs
func scanEventItem(row pgx.Row) (*models.AddEventItem, error) {
	entry := &models.AddEventItem{}
	var original, added []byte
	err := row.Scan(
		&entry.ID, &entry.EventID, &entry.ItemID, &entry.ListID, &entry.Action,
		&entry.ItemName, &entry.OriginalQuantity, &original,
		&entry.AddedQuantity, &added, &entry.ReversedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(original) > 0 {
		if err := json.Unmarshal(original, &entry.OriginalSources); err != nil {
			return nil, err
		}
	}
	if len(added) > 0 {
		if err := json.Unmarshal(added, &entry.AddedSources); err != nil {
			return nil, err
		}
	}
	return entry, nil
}
