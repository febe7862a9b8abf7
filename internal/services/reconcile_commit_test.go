package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hearthware/homeboard/internal/models"
)

// memListStore implements ListStore with the same merge and undo semantics as
// the database layer: at most one live unchecked item per (list, key), merged
// entries remember their pre-merge state, reversals are marked per entry.
type memListStore struct {
	nextItem  int
	nextEvent int
	nextEntry int
	lists     map[string][]*memItem
	events    map[int]*memEvent
}

type memItem struct {
	id       int
	name     string
	key      string
	quantity *string
	sources  []models.RecipeSource
	checked  bool
	deleted  bool
}

type memEventEntry struct {
	id               int
	itemID           int
	action           string
	itemName         string
	originalQuantity *string
	originalSources  []models.RecipeSource
	reversed         bool
}

type memEvent struct {
	id      int
	entries []*memEventEntry
	undone  bool
}

func newMemListStore() *memListStore {
	return &memListStore{
		lists:  make(map[string][]*memItem),
		events: make(map[int]*memEvent),
	}
}

func (m *memListStore) live(store, key string) *memItem {
	for _, item := range m.lists[store] {
		if item.key == key && !item.checked && !item.deleted {
			return item
		}
	}
	return nil
}

func (m *memListStore) item(id int) *memItem {
	for _, items := range m.lists {
		for _, item := range items {
			if item.id == id {
				return item
			}
		}
	}
	return nil
}

func (m *memListStore) UncheckedKeys(ctx context.Context, ownerID int) (map[string]map[string]struct{}, error) {
	keys := make(map[string]map[string]struct{})
	for store, items := range m.lists {
		for _, item := range items {
			if item.checked || item.deleted {
				continue
			}
			if _, ok := keys[store]; !ok {
				keys[store] = make(map[string]struct{})
			}
			keys[store][item.key] = struct{}{}
		}
	}
	return keys, nil
}

func (m *memListStore) CommitRun(ctx context.Context, ownerID int, plan *models.ReconcilePlan) (*models.AddToListResult, error) {
	if len(plan.Groups) == 0 {
		return &models.AddToListResult{ItemsSkipped: plan.SkippedCount}, nil
	}

	m.nextEvent++
	ev := &memEvent{id: m.nextEvent}
	m.events[ev.id] = ev
	res := &models.AddToListResult{EventID: ev.id, ItemsSkipped: plan.SkippedCount}

	for _, g := range plan.Groups {
		if item := m.live(g.Store, g.NormalizedKey); item != nil {
			m.nextEntry++
			ev.entries = append(ev.entries, &memEventEntry{
				id:               m.nextEntry,
				itemID:           item.id,
				action:           models.EventActionMerged,
				itemName:         g.Name,
				originalQuantity: item.quantity,
				originalSources:  append([]models.RecipeSource(nil), item.sources...),
			})
			item.quantity = CombineQuantities(item.quantity, g.Quantity)
			item.sources = UnionSources(item.sources, g.Sources)
			res.ItemsMerged++
			continue
		}

		m.nextItem++
		item := &memItem{
			id:       m.nextItem,
			name:     g.Name,
			key:      g.NormalizedKey,
			quantity: g.Quantity,
			sources:  append([]models.RecipeSource(nil), g.Sources...),
		}
		m.lists[g.Store] = append(m.lists[g.Store], item)
		m.nextEntry++
		ev.entries = append(ev.entries, &memEventEntry{
			id:       m.nextEntry,
			itemID:   item.id,
			action:   models.EventActionCreated,
			itemName: g.Name,
		})
		if g.Store == DefaultStoreLabel {
			res.GroceryItemsAdded++
		} else {
			res.SpecialtyItemsAdded++
		}
	}
	return res, nil
}

func (m *memListStore) UndoRun(ctx context.Context, ownerID, eventID int) ([]models.UndoFailure, error) {
	ev, ok := m.events[eventID]
	if !ok || ev.undone {
		return nil, fmt.Errorf("add event not found: %w", ErrNotFound)
	}

	var failures []models.UndoFailure
	for _, e := range ev.entries {
		if e.reversed {
			continue
		}
		item := m.item(e.itemID)
		reason := ""
		switch {
		case item == nil:
			reason = "item no longer exists"
		case item.deleted:
			reason = "item was deleted"
		case item.checked:
			reason = "item already checked off"
		}
		if reason != "" {
			failures = append(failures, models.UndoFailure{
				EventItemID: e.id,
				ItemID:      e.itemID,
				ItemName:    e.itemName,
				Reason:      reason,
			})
			continue
		}
		switch e.action {
		case models.EventActionCreated:
			item.deleted = true
		case models.EventActionMerged:
			item.quantity = e.originalQuantity
			item.sources = e.originalSources
		}
		e.reversed = true
	}

	if len(failures) == 0 {
		ev.undone = true
	}
	return failures, nil
}

func TestAddToListDuplicateRunMerges(t *testing.T) {
	store := newMemListStore()
	recipes := map[int]*models.Recipe{
		1: {ID: 1, Name: "Pancakes", Ingredients: []models.RecipeIngredient{
			ingredient("2 cups flour", "2 cups"),
			ingredient("1 cup milk", "1 cup"),
		}},
	}
	r := testReconciler(recipes, nil, store, nil)

	first, err := r.AddToList(context.Background(), 1, []int{1}, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.GroceryItemsAdded != 2 || first.ItemsMerged != 0 {
		t.Fatalf("first run = %+v, want 2 added, 0 merged", first)
	}

	second, err := r.AddToList(context.Background(), 1, []int{1}, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.ItemsMerged != 2 || second.GroceryItemsAdded != 0 {
		t.Fatalf("second run = %+v, want 0 added, 2 merged", second)
	}

	// Still one item per key, quantities concatenated, same-recipe
	// provenance not duplicated
	if n := len(store.lists[DefaultStoreLabel]); n != 2 {
		t.Errorf("list has %d items, want 2", n)
	}
	flour := store.live(DefaultStoreLabel, "flour")
	if flour == nil || flour.quantity == nil || *flour.quantity != "2 cups + 2 cups" {
		t.Errorf("flour after duplicate run = %+v", flour)
	}
	if len(flour.sources) != 1 {
		t.Errorf("flour sources = %+v, want one recipe", flour.sources)
	}
}

func TestUndoRestoresPreMergeState(t *testing.T) {
	store := newMemListStore()
	r := testReconciler(twoRecipes(), nil, store, nil)

	// Pancakes puts flour and milk on the list
	if _, err := r.AddToList(context.Background(), 1, []int{1}, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// Bread merges into flour and creates yeast
	second, err := r.AddToList(context.Background(), 1, []int{2}, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.ItemsMerged != 1 || second.GroceryItemsAdded != 1 {
		t.Fatalf("second run = %+v, want 1 merged, 1 added", second)
	}

	flour := store.live(DefaultStoreLabel, "flour")
	if *flour.quantity != "2 cups + 3 cups" || len(flour.sources) != 2 {
		t.Fatalf("flour before undo = %+v", flour)
	}

	if err := r.UndoAddToList(context.Background(), 1, second.EventID); err != nil {
		t.Fatalf("undo: %v", err)
	}

	// Merged item back to its exact pre-merge quantity and provenance
	flour = store.live(DefaultStoreLabel, "flour")
	if flour == nil || *flour.quantity != "2 cups" {
		t.Errorf("flour quantity not restored: %+v", flour)
	}
	if len(flour.sources) != 1 || flour.sources[0].RecipeID != 1 {
		t.Errorf("flour provenance not restored: %+v", flour.sources)
	}
	// Created item gone
	if store.live(DefaultStoreLabel, "yeast") != nil {
		t.Error("created item survived undo")
	}
	// First run untouched
	if store.live(DefaultStoreLabel, "milk") == nil {
		t.Error("earlier run's item was affected")
	}

	// The event is consumed
	err = r.UndoAddToList(context.Background(), 1, second.EventID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second undo: got %v, want ErrNotFound", err)
	}
}

func TestUndoPartialFailureThenRetry(t *testing.T) {
	store := newMemListStore()
	r := testReconciler(twoRecipes(), nil, store, nil)

	res, err := r.AddToList(context.Background(), 1, []int{1}, nil)
	if err != nil {
		t.Fatalf("AddToList: %v", err)
	}

	// The household checks flour off before the undo
	flour := store.live(DefaultStoreLabel, "flour")
	flour.checked = true

	err = r.UndoAddToList(context.Background(), 1, res.EventID)
	var conflict *UndoConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %v, want *UndoConflictError", err)
	}
	if len(conflict.Failures) != 1 || conflict.Failures[0].Reason != "item already checked off" {
		t.Fatalf("failures = %+v", conflict.Failures)
	}
	// The reversible entry went through anyway
	if store.live(DefaultStoreLabel, "milk") != nil {
		t.Error("reversible item not reversed on partial failure")
	}

	// Uncheck and retry: only the leftover entry is re-attempted
	flour.checked = false
	if err := r.UndoAddToList(context.Background(), 1, res.EventID); err != nil {
		t.Fatalf("retry undo: %v", err)
	}
	if !flour.deleted {
		t.Error("leftover entry not reversed on retry")
	}
	if !store.events[res.EventID].undone {
		t.Error("event not closed after clean retry")
	}
}

func TestAddToListAllSkippedRecordsNoEvent(t *testing.T) {
	store := newMemListStore()
	recipes := map[int]*models.Recipe{
		1: {ID: 1, Name: "Boiled Water", Ingredients: []models.RecipeIngredient{
			ingredient("4 cups water", "4 cups"),
		}},
	}
	r := testReconciler(recipes, nil, store, nil)

	res, err := r.AddToList(context.Background(), 1, []int{1}, nil)
	if err != nil {
		t.Fatalf("AddToList: %v", err)
	}
	if res.EventID != 0 || res.ItemsSkipped != 1 {
		t.Errorf("result = %+v, want no event and 1 skipped", res)
	}
	if len(store.events) != 0 {
		t.Errorf("empty run recorded %d events", len(store.events))
	}
}
