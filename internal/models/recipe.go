package models

import (
	"time"
)

// Recipe is a saved recipe owned by a single user
type Recipe struct {
	ID           int                `json:"id"`
	UserID       int                `json:"user_id"`
	Name         string             `json:"name"`
	Servings     *int               `json:"servings,omitempty"`
	Instructions *string            `json:"instructions,omitempty"`
	LabelColor   *string            `json:"label_color,omitempty"` // Hex color like "#e94560"
	Ingredients  []RecipeIngredient `json:"ingredients,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// RecipeIngredient belongs to exactly one recipe. Quantity and description are
// opaque strings; the engine only interprets the name.
type RecipeIngredient struct {
	ID              int       `json:"id"`
	RecipeID        int       `json:"recipe_id"`
	Name            string    `json:"name"`
	Quantity        *string   `json:"quantity,omitempty"`
	Description     *string   `json:"description,omitempty"`
	StorePreference *string   `json:"store_preference,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// RecipeSource is a provenance tag recording which recipe contributed to a
// merged list item
type RecipeSource struct {
	RecipeID   int     `json:"recipe_id"`
	RecipeName string  `json:"recipe_name"`
	LabelColor *string `json:"label_color,omitempty"`
}

// CreateRecipeRequest is the request body for recipe creation
type CreateRecipeRequest struct {
	Name         string                    `json:"name"`
	Servings     *int                      `json:"servings,omitempty"`
	Instructions *string                   `json:"instructions,omitempty"`
	Ingredients  []CreateIngredientRequest `json:"ingredients,omitempty"`
}

// UpdateRecipeRequest is the request body for recipe updates
type UpdateRecipeRequest struct {
	Name         *string `json:"name,omitempty"`
	Servings     *int    `json:"servings,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
}

// CreateIngredientRequest is the request body for adding an ingredient
type CreateIngredientRequest struct {
	Name            string  `json:"name"`
	Quantity        *string `json:"quantity,omitempty"`
	Description     *string `json:"description,omitempty"`
	StorePreference *string `json:"store_preference,omitempty"`
}

// UpdateIngredientRequest is the request body for editing an ingredient
type UpdateIngredientRequest struct {
	Name            *string `json:"name,omitempty"`
	Quantity        *string `json:"quantity,omitempty"`
	Description     *string `json:"description,omitempty"`
	StorePreference *string `json:"store_preference,omitempty"`
}
