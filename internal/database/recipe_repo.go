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
	ErrRecipeNotFound     = fmt.Errorf("recipe not found: %w", services.ErrNotFound)
	ErrIngredientNotFound = fmt.Errorf("ingredient not found: %w", services.ErrNotFound)
)

// labelPalette is cycled through as recipes are created so provenance tags
// stay visually distinct
var labelPalette = []string{
	"#e94560", "#0f9b8e", "#f0a500", "#7b2cbf", "#2d6cdf",
	"#d4526e", "#3a9e4f", "#c77d2e", "#5c6bc0", "#b5485d",
}

// CreateRecipe creates a recipe with its ingredients atomically
func (db *DB) CreateRecipe(ctx context.Context, ownerID int, req *models.CreateRecipeRequest) (*models.Recipe, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	recipe, err := createRecipeTx(ctx, tx, ownerID, req)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return recipe, nil
}

// createRecipeTx inserts the recipe and its ingredients inside the caller's
// transaction
func createRecipeTx(ctx context.Context, tx pgx.Tx, ownerID int, req *models.CreateRecipeRequest) (*models.Recipe, error) {
	var count int
	if err := tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM recipes WHERE user_id = $1", ownerID,
	).Scan(&count); err != nil {
		return nil, err
	}
	color := labelPalette[count%len(labelPalette)]

	recipe := &models.Recipe{}
	err := tx.QueryRow(ctx, `
		INSERT INTO recipes (user_id, name, servings, instructions, label_color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, user_id, name, servings, instructions, label_color, created_at, updated_at
	`, ownerID, req.Name, req.Servings, req.Instructions, color).Scan(
		&recipe.ID, &recipe.UserID, &recipe.Name, &recipe.Servings,
		&recipe.Instructions, &recipe.LabelColor, &recipe.CreatedAt, &recipe.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, ing := range req.Ingredients {
		ri := models.RecipeIngredient{}
		err := tx.QueryRow(ctx, `
			INSERT INTO recipe_ingredients (recipe_id, name, quantity, description, store_preference, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			RETURNING id, recipe_id, name, quantity, description, store_preference, created_at
		`, recipe.ID, ing.Name, ing.Quantity, ing.Description, ing.StorePreference).Scan(
			&ri.ID, &ri.RecipeID, &ri.Name, &ri.Quantity, &ri.Description, &ri.StorePreference, &ri.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		recipe.Ingredients = append(recipe.Ingredients, ri)
	}

	return recipe, nil
}

// ListRecipes returns all of a user's recipes with their ingredients
func (db *DB) ListRecipes(ctx context.Context, ownerID int) ([]*models.Recipe, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, name, servings, instructions, label_color, created_at, updated_at
		FROM recipes
		WHERE user_id = $1
		ORDER BY name ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipes []*models.Recipe
	byID := make(map[int]*models.Recipe)
	for rows.Next() {
		r := &models.Recipe{}
		err := rows.Scan(
			&r.ID, &r.UserID, &r.Name, &r.Servings, &r.Instructions,
			&r.LabelColor, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, r)
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.attachIngredients(ctx, byID); err != nil {
		return nil, err
	}
	return recipes, nil
}

// GetRecipe returns one recipe with ingredients, owner-scoped
func (db *DB) GetRecipe(ctx context.Context, ownerID, id int) (*models.Recipe, error) {
	r := &models.Recipe{}
	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, name, servings, instructions, label_color, created_at, updated_at
		FROM recipes
		WHERE id = $1 AND user_id = $2
	`, id, ownerID).Scan(
		&r.ID, &r.UserID, &r.Name, &r.Servings, &r.Instructions,
		&r.LabelColor, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}

	if err := db.attachIngredients(ctx, map[int]*models.Recipe{r.ID: r}); err != nil {
		return nil, err
	}
	return r, nil
}

// RecipesWithIngredients returns the owner's recipes for the given ids in
// request order, silently omitting ids that do not exist or are not owned
func (db *DB) RecipesWithIngredients(ctx context.Context, ownerID int, ids []int) ([]*models.Recipe, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, name, servings, instructions, label_color, created_at, updated_at
		FROM recipes
		WHERE user_id = $1 AND id = ANY($2)
	`, ownerID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int]*models.Recipe)
	for rows.Next() {
		r := &models.Recipe{}
		err := rows.Scan(
			&r.ID, &r.UserID, &r.Name, &r.Servings, &r.Instructions,
			&r.LabelColor, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.attachIngredients(ctx, byID); err != nil {
		return nil, err
	}

	recipes := make([]*models.Recipe, 0, len(byID))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			recipes = append(recipes, r)
			delete(byID, id)
		}
	}
	return recipes, nil
}

// attachIngredients loads ingredients for every recipe in byID
func (db *DB) attachIngredients(ctx context.Context, byID map[int]*models.Recipe) error {
	if len(byID) == 0 {
		return nil
	}

	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, recipe_id, name, quantity, description, store_preference, created_at
		FROM recipe_ingredients
		WHERE recipe_id = ANY($1)
		ORDER BY recipe_id, id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		ri := models.RecipeIngredient{}
		err := rows.Scan(
			&ri.ID, &ri.RecipeID, &ri.Name, &ri.Quantity,
			&ri.Description, &ri.StorePreference, &ri.CreatedAt,
		)
		if err != nil {
			return err
		}
		if r, ok := byID[ri.RecipeID]; ok {
			r.Ingredients = append(r.Ingredients, ri)
		}
	}
	return rows.Err()
}

// UpdateRecipe updates recipe fields, owner-scoped
func (db *DB) UpdateRecipe(ctx context.Context, ownerID, id int, req *models.UpdateRecipeRequest) (*models.Recipe, error) {
	r := &models.Recipe{}
	err := db.Pool.QueryRow(ctx, `
		UPDATE recipes
		SET name = COALESCE($3, name),
		    servings = COALESCE($4, servings),
		    instructions = COALESCE($5, instructions),
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, servings, instructions, label_color, created_at, updated_at
	`, id, ownerID, req.Name, req.Servings, req.Instructions).Scan(
		&r.ID, &r.UserID, &r.Name, &r.Servings, &r.Instructions,
		&r.LabelColor, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}

	if err := db.attachIngredients(ctx, map[int]*models.Recipe{r.ID: r}); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteRecipe deletes a recipe and its ingredients, owner-scoped
func (db *DB) DeleteRecipe(ctx context.Context, ownerID, id int) error {
	result, err := db.Pool.Exec(ctx, `
		DELETE FROM recipes WHERE id = $1 AND user_id = $2
	`, id, ownerID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRecipeNotFound
	}
	return nil
}

// AddIngredient appends an ingredient to a recipe, owner-scoped
func (db *DB) AddIngredient(ctx context.Context, ownerID, recipeID int, req *models.CreateIngredientRequest) (*models.RecipeIngredient, error) {
	ri := &models.RecipeIngredient{}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO recipe_ingredients (recipe_id, name, quantity, description, store_preference, created_at)
		SELECT r.id, $3, $4, $5, $6, NOW()
		FROM recipes r
		WHERE r.id = $1 AND r.user_id = $2
		RETURNING id, recipe_id, name, quantity, description, store_preference, created_at
	`, recipeID, ownerID, req.Name, req.Quantity, req.Description, req.StorePreference).Scan(
		&ri.ID, &ri.RecipeID, &ri.Name, &ri.Quantity, &ri.Description, &ri.StorePreference, &ri.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}
	return ri, nil
}

// UpdateIngredient updates one ingredient, owner-scoped through its recipe
func (db *DB) UpdateIngredient(ctx context.Context, ownerID, recipeID, ingredientID int, req *models.UpdateIngredientRequest) (*models.RecipeIngredient, error) {
	ri := &models.RecipeIngredient{}
	err := db.Pool.QueryRow(ctx, `
		UPDATE recipe_ingredients ri
		SET name = COALESCE($4, ri.name),
		    quantity = COALESCE($5, ri.quantity),
		    description = COALESCE($6, ri.description),
		    store_preference = COALESCE($7, ri.store_preference)
		FROM recipes r
		WHERE ri.id = $3 AND ri.recipe_id = $1 AND r.id = ri.recipe_id AND r.user_id = $2
		RETURNING ri.id, ri.recipe_id, ri.name, ri.quantity, ri.description, ri.store_preference, ri.created_at
	`, recipeID, ownerID, ingredientID, req.Name, req.Quantity, req.Description, req.StorePreference).Scan(
		&ri.ID, &ri.RecipeID, &ri.Name, &ri.Quantity, &ri.Description, &ri.StorePreference, &ri.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIngredientNotFound
		}
		return nil, err
	}
	return ri, nil
}

// DeleteIngredient removes one ingredient, owner-scoped through its recipe
func (db *DB) DeleteIngredient(ctx context.Context, ownerID, recipeID, ingredientID int) error {
	result, err := db.Pool.Exec(ctx, `
		DELETE FROM recipe_ingredients ri
		USING recipes r
		WHERE ri.id = $3 AND ri.recipe_id = $1 AND r.id = ri.recipe_id AND r.user_id = $2
	`, recipeID, ownerID, ingredientID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrIngredientNotFound
	}
	return nil
}
