package models

import (
	"time"
)

// PantryStatus indicates how much of a pantry staple the household has left
type PantryStatus string

const (
	PantryStatusHave PantryStatus = "have"
	PantryStatusLow  PantryStatus = "low"
	PantryStatusOut  PantryStatus = "out"
)

// Valid reports whether the status is one of the known values
func (s PantryStatus) Valid() bool {
	return s == PantryStatusHave || s == PantryStatusLow || s == PantryStatusOut
}

// PantryRecord is one staple tracked in a user's pantry inventory.
// NormalizedName is unique per owner and is the join key for matching.
type PantryRecord struct {
	ID             int          `json:"id"`
	UserID         int          `json:"user_id"`
	Name           string       `json:"name"`
	NormalizedName string       `json:"normalized_name"`
	Status         PantryStatus `json:"status"`
	Category       *string      `json:"category,omitempty"`
	PreferredStore *string      `json:"preferred_store,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// CreatePantryRequest is the request body for adding a pantry record
type CreatePantryRequest struct {
	Name           string       `json:"name"`
	Status         PantryStatus `json:"status"`
	Category       *string      `json:"category,omitempty"`
	PreferredStore *string      `json:"preferred_store,omitempty"`
}

// UpdatePantryRequest is the request body for updating a pantry record
type UpdatePantryRequest struct {
	Name           *string       `json:"name,omitempty"`
	Status         *PantryStatus `json:"status,omitempty"`
	Category       *string       `json:"category,omitempty"`
	PreferredStore *string       `json:"preferred_store,omitempty"`
}

// BulkPantryRequest adds several pantry records at once
type BulkPantryRequest struct {
	Items []CreatePantryRequest `json:"items"`
}

// StoreDefault is a learned ingredient-to-store routing preference.
// Upserted with last-write-wins semantics each time the user overrides a
// routing decision.
type StoreDefault struct {
	ID              int       `json:"id"`
	UserID          int       `json:"user_id"`
	NormalizedName  string    `json:"normalized_name"`
	StorePreference string    `json:"store_preference"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SetStoreDefaultRequest is the request body for setting a store default
type SetStoreDefaultRequest struct {
	IngredientName  string `json:"ingredient_name"`
	StorePreference string `json:"store_preference"`
}
