package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hearthware/homeboard/internal/middleware"
	"github.com/hearthware/homeboard/internal/models"
)

// ListRecipes returns all of the user's recipes
func (h *Handler) ListRecipes(c *fiber.Ctx) error {
	recipes, err := h.db.ListRecipes(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return ServiceError(c, err, "failed to list recipes")
	}
	if recipes == nil {
		recipes = []*models.Recipe{}
	}
	return Success(c, recipes)
}

// GetRecipe returns one recipe with its ingredients
func (h *Handler) GetRecipe(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid recipe id")
	}

	recipe, err := h.db.GetRecipe(c.Context(), middleware.GetUserID(c), id)
	if err != nil {
		return ServiceError(c, err, "failed to get recipe")
	}
	return Success(c, recipe)
}

// CreateRecipe creates a recipe with its ingredients
func (h *Handler) CreateRecipe(c *fiber.Ctx) error {
	var req models.CreateRecipeRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return Error(c, fiber.StatusBadRequest, "recipe name is required")
	}
	for _, ing := range req.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return Error(c, fiber.StatusBadRequest, "ingredient name is required")
		}
	}

	recipe, err := h.db.CreateRecipe(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return ServiceError(c, err, "failed to create recipe")
	}
	return Created(c, recipe)
}

// UpdateRecipe updates recipe fields
func (h *Handler) UpdateRecipe(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid recipe id")
	}

	var req models.UpdateRecipeRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	recipe, err := h.db.UpdateRecipe(c.Context(), middleware.GetUserID(c), id, &req)
	if err != nil {
		return ServiceError(c, err, "failed to update recipe")
	}
	return Success(c, recipe)
}

// DeleteRecipe deletes a recipe and its ingredients
func (h *Handler) DeleteRecipe(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid recipe id")
	}

	if err := h.db.DeleteRecipe(c.Context(), middleware.GetUserID(c), id); err != nil {
		return ServiceError(c, err, "failed to delete recipe")
	}
	return Success(c, fiber.Map{"deleted": true})
}

// AddIngredient appends an ingredient to a recipe
func (h *Handler) AddIngredient(c *fiber.Ctx) error {
	recipeID, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid recipe id")
	}

	var req models.CreateIngredientRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return Error(c, fiber.StatusBadRequest, "ingredient name is required")
	}

	ingredient, err := h.db.AddIngredient(c.Context(), middleware.GetUserID(c), recipeID, &req)
	if err != nil {
		return ServiceError(c, err, "failed to add ingredient")
	}
	return Created(c, ingredient)
}

// UpdateIngredient updates one ingredient
func (h *Handler) UpdateIngredient(c *fiber.Ctx) error {
	recipeID, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid recipe id")
	}
	ingredientID, err := c.ParamsInt("ingredientId")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid ingredient id")
	}

	var req models.UpdateIngredientRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	ingredient, err := h.db.UpdateIngredient(c.Context(), middleware.GetUserID(c), recipeID, ingredientID, &req)
	if err != nil {
		return ServiceError(c, err, "failed to update ingredient")
	}
	return Success(c, ingredient)
}

// DeleteIngredient removes one ingredient
func (h *Handler) DeleteIngredient(c *fiber.Ctx) error {
	recipeID, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid recipe id")
	}
	ingredientID, err := c.ParamsInt("ingredientId")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid ingredient id")
	}

	if err := h.db.DeleteIngredient(c.Context(), middleware.GetUserID(c), recipeID, ingredientID); err != nil {
		return ServiceError(c, err, "failed to delete ingredient")
	}
	return Success(c, fiber.Map{"deleted": true})
}

// CheckPantry previews how the selected recipes' ingredients resolve against
// the pantry, without writing anything
func (h *Handler) CheckPantry(c *fiber.Ctx) error {
	var req models.CheckPantryRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.RecipeIDs) == 0 {
		return Error(c, fiber.StatusBadRequest, "recipe_ids is required")
	}

	proposals, err := h.reconciler.CheckPantry(c.Context(), middleware.GetUserID(c), req.RecipeIDs)
	if err != nil {
		return ServiceError(c, err, "failed to check pantry")
	}
	if proposals == nil {
		proposals = []models.IngredientProposal{}
	}
	return Success(c, models.CheckPantryResponse{Ingredients: proposals})
}

// AddToList runs the committing reconciliation: skip, route, merge, and
// record one undoable event
func (h *Handler) AddToList(c *fiber.Ctx) error {
	var req models.AddToListRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.RecipeIDs) == 0 {
		return Error(c, fiber.StatusBadRequest, "recipe_ids is required")
	}

	result, err := h.reconciler.AddToList(c.Context(), middleware.GetUserID(c), req.RecipeIDs, req.Overrides)
	if err != nil {
		return ServiceError(c, err, "failed to add recipes to list")
	}
	return Success(c, result)
}

// ListAddEvents returns recent reconciliation runs
func (h *Handler) ListAddEvents(c *fiber.Ctx) error {
	events, err := h.db.ListAddEvents(c.Context(), middleware.GetUserID(c), c.QueryInt("limit", 20))
	if err != nil {
		return ServiceError(c, err, "failed to list events")
	}
	if events == nil {
		events = []*models.AddEvent{}
	}
	return Success(c, events)
}

// GetAddEvent returns one reconciliation run with its entries
func (h *Handler) GetAddEvent(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	event, err := h.db.GetAddEvent(c.Context(), middleware.GetUserID(c), id)
	if err != nil {
		return ServiceError(c, err, "failed to get event")
	}
	return Success(c, event)
}

// UndoAddEvent reverses one reconciliation run
func (h *Handler) UndoAddEvent(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	if err := h.reconciler.UndoAddToList(c.Context(), middleware.GetUserID(c), id); err != nil {
		return ServiceError(c, err, "failed to undo event")
	}
	return Success(c, fiber.Map{"undone": true})
}
