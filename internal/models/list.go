package models

import (
	"time"
)

// List is a shopping list (or other household list) owned by a user
type List struct {
	ID        int        `json:"id"`
	OwnerID   int        `json:"owner_id"`
	Name      string     `json:"name"`
	Icon      *string    `json:"icon,omitempty"` // emoji
	SortOrder int        `json:"sort_order"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Item is a single entry on a list. Items contributed by recipes carry
// provenance tags in RecipeSources; multiple recipes may merge into one item.
type Item struct {
	ID            int            `json:"id"`
	ListID        int            `json:"list_id"`
	CategoryID    *int           `json:"category_id,omitempty"`
	Name          string         `json:"name"`
	Description   *string        `json:"description,omitempty"`
	Quantity      *string        `json:"quantity,omitempty"` // "2 lbs", "1 gallon", etc.
	Checked       bool           `json:"checked"`
	CheckedAt     *time.Time     `json:"checked_at,omitempty"`
	RecipeSources []RecipeSource `json:"recipe_sources,omitempty"`
	CreatedBy     *int           `json:"created_by,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     *time.Time     `json:"deleted_at,omitempty"`
}

// ListWithItems includes the list and its live items
type ListWithItems struct {
	List
	Items []Item `json:"items"`
}
