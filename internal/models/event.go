package models

import (
	"time"
)

// Event item actions
const (
	EventActionCreated = "created"
	EventActionMerged  = "merged"
)

// AddEvent records one reconciliation run so it can be undone as a single
// atomic unit. Immutable once created; consumed at most once by undo.
type AddEvent struct {
	ID        int            `json:"id"`
	UserID    int            `json:"user_id"`
	UndoneAt  *time.Time     `json:"undone_at,omitempty"`
	Items     []AddEventItem `json:"items,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AddEventItem tracks a single list item created or merged by a run, with
// enough pre-merge state to exactly reverse the change.
type AddEventItem struct {
	ID       int    `json:"id"`
	EventID  int    `json:"event_id"`
	ItemID   int    `json:"item_id"`
	ListID   int    `json:"list_id"`
	Action   string `json:"action"` // "created" or "merged"
	ItemName string `json:"item_name"`

	// Pre-merge state, set only for merged items
	OriginalQuantity *string        `json:"original_quantity,omitempty"`
	OriginalSources  []RecipeSource `json:"original_recipe_sources,omitempty"`

	// What this run contributed
	AddedQuantity *string        `json:"added_quantity,omitempty"`
	AddedSources  []RecipeSource `json:"added_recipe_sources,omitempty"`

	ReversedAt *time.Time `json:"reversed_at,omitempty"`
}

// IngredientOverride is a caller-supplied per-ingredient decision that always
// wins over the computed default. Store, when set, also teaches the router.
type IngredientOverride struct {
	Name      string  `json:"name"`
	AddToList bool    `json:"add_to_list"`
	Store     *string `json:"store,omitempty"`
}

// AddToListRequest is the request body for the committing reconciliation run
type AddToListRequest struct {
	RecipeIDs []int                `json:"recipe_ids"`
	Overrides []IngredientOverride `json:"ingredient_overrides,omitempty"`
}

// AddToListResult summarizes one reconciliation run
type AddToListResult struct {
	EventID             int `json:"event_id"`
	GroceryItemsAdded   int `json:"grocery_items_added"`
	SpecialtyItemsAdded int `json:"specialty_items_added"`
	ItemsMerged         int `json:"items_merged"`
	ItemsSkipped        int `json:"items_skipped"`
}

// PantryMatch is the pantry record a recipe ingredient resolved to
type PantryMatch struct {
	ID     int          `json:"id"`
	Name   string       `json:"name"`
	Status PantryStatus `json:"status"`
}

// IngredientProposal is the per-ingredient output of a pantry check
type IngredientProposal struct {
	Name        string       `json:"name"`
	Quantity    *string      `json:"quantity,omitempty"`
	PantryMatch *PantryMatch `json:"pantry_match,omitempty"`
	Confidence  float64      `json:"confidence"`
	AddToList   bool         `json:"add_to_list"`
	AlwaysSkip  bool         `json:"always_skip,omitempty"`
}

// CheckPantryRequest is the request body for the read-only pantry preview
type CheckPantryRequest struct {
	RecipeIDs []int `json:"recipe_ids"`
}

// CheckPantryResponse groups proposals for a set of recipes
type CheckPantryResponse struct {
	Ingredients []IngredientProposal `json:"ingredients"`
}

// PlanGroup is one merged purchase group destined for a single list. Groups
// are keyed by normalized name; Sources is the union of contributing recipes.
type PlanGroup struct {
	Name          string         `json:"name"`
	NormalizedKey string         `json:"normalized_key"`
	Quantity      *string        `json:"quantity,omitempty"`
	Description   *string        `json:"description,omitempty"`
	Store         string         `json:"store"` // destination label; empty means the default list
	Sources       []RecipeSource `json:"sources"`

	// Set during preview when an unchecked item with the same key already
	// exists on the destination list
	MatchesExisting bool `json:"matches_existing,omitempty"`
}

// ReconcilePlan is the computed, not-yet-committed outcome of a run
type ReconcilePlan struct {
	Groups       []PlanGroup `json:"groups"`
	SkippedCount int         `json:"skipped_count"`
}

// UndoFailure identifies an event entry that could not be reversed
type UndoFailure struct {
	EventItemID int    `json:"event_item_id"`
	ItemID      int    `json:"item_id"`
	ItemName    string `json:"item_name"`
	Reason      string `json:"reason"`
}
