package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hearthware/homeboard/internal/middleware"
	"github.com/hearthware/homeboard/internal/models"
	"github.com/hearthware/homeboard/internal/services"
)

// ListPantry returns the user's pantry inventory
func (h *Handler) ListPantry(c *fiber.Ctx) error {
	records, err := h.db.PantryRecords(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return ServiceError(c, err, "failed to list pantry")
	}
	if records == nil {
		records = []*models.PantryRecord{}
	}
	return Success(c, records)
}

// CreatePantryRecord adds one staple to the pantry
func (h *Handler) CreatePantryRecord(c *fiber.Ctx) error {
	var req models.CreatePantryRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return Error(c, fiber.StatusBadRequest, "name is required")
	}
	if req.Status != "" && !req.Status.Valid() {
		return Error(c, fiber.StatusBadRequest, "status must be have, low or out")
	}

	record, err := h.db.CreatePantryRecord(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return ServiceError(c, err, "failed to create pantry record")
	}
	return Created(c, record)
}

// BulkCreatePantry adds several staples at once, skipping duplicates
func (h *Handler) BulkCreatePantry(c *fiber.Ctx) error {
	var req models.BulkPantryRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Items) == 0 {
		return Error(c, fiber.StatusBadRequest, "items is required")
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.Name) == "" {
			return Error(c, fiber.StatusBadRequest, "every item needs a name")
		}
		if item.Status != "" && !item.Status.Valid() {
			return Error(c, fiber.StatusBadRequest, "status must be have, low or out")
		}
	}

	created, err := h.db.BulkCreatePantry(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return ServiceError(c, err, "failed to create pantry records")
	}
	if created == nil {
		created = []*models.PantryRecord{}
	}
	return Created(c, created)
}

// UpdatePantryRecord updates one staple
func (h *Handler) UpdatePantryRecord(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid pantry record id")
	}

	var req models.UpdatePantryRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Status != nil && !req.Status.Valid() {
		return Error(c, fiber.StatusBadRequest, "status must be have, low or out")
	}

	record, err := h.db.UpdatePantryRecord(c.Context(), middleware.GetUserID(c), id, &req)
	if err != nil {
		return ServiceError(c, err, "failed to update pantry record")
	}
	return Success(c, record)
}

// DeletePantryRecord removes one staple
func (h *Handler) DeletePantryRecord(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid pantry record id")
	}

	if err := h.db.DeletePantryRecord(c.Context(), middleware.GetUserID(c), id); err != nil {
		return ServiceError(c, err, "failed to delete pantry record")
	}
	return Success(c, fiber.Map{"deleted": true})
}

// ListStoreDefaults returns the learned ingredient-to-store routing table
func (h *Handler) ListStoreDefaults(c *fiber.Ctx) error {
	defaults, err := h.db.ListStoreDefaults(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return ServiceError(c, err, "failed to list store defaults")
	}
	if defaults == nil {
		defaults = []*models.StoreDefault{}
	}
	return Success(c, defaults)
}

// SetStoreDefault teaches the router one ingredient-to-store preference
func (h *Handler) SetStoreDefault(c *fiber.Ctx) error {
	var req models.SetStoreDefaultRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.IngredientName) == "" || strings.TrimSpace(req.StorePreference) == "" {
		return Error(c, fiber.StatusBadRequest, "ingredient_name and store_preference are required")
	}

	key := services.NormalizeIngredient(req.IngredientName)
	if err := h.db.Upsert(c.Context(), middleware.GetUserID(c), key, req.StorePreference); err != nil {
		return ServiceError(c, err, "failed to set store default")
	}
	return Success(c, fiber.Map{
		"normalized_name":  key,
		"store_preference": req.StorePreference,
	})
}

// DeleteStoreDefault removes one learned preference
func (h *Handler) DeleteStoreDefault(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid store default id")
	}

	if err := h.db.DeleteStoreDefault(c.Context(), middleware.GetUserID(c), id); err != nil {
		return ServiceError(c, err, "failed to delete store default")
	}
	return Success(c, fiber.Map{"deleted": true})
}
