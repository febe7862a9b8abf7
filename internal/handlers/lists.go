package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hearthware/homeboard/internal/middleware"
	"github.com/hearthware/homeboard/internal/models"
)

// ListLists returns all of the user's lists with their items
func (h *Handler) ListLists(c *fiber.Ctx) error {
	lists, err := h.db.ListLists(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return ServiceError(c, err, "failed to list lists")
	}
	if lists == nil {
		lists = []*models.ListWithItems{}
	}
	return Success(c, lists)
}

// GetList returns one list with its items
func (h *Handler) GetList(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid list id")
	}

	list, err := h.db.GetList(c.Context(), middleware.GetUserID(c), id)
	if err != nil {
		return ServiceError(c, err, "failed to get list")
	}
	return Success(c, list)
}

// CheckItem toggles an item's checked state
func (h *Handler) CheckItem(c *fiber.Ctx) error {
	itemID, err := c.ParamsInt("itemId")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid item id")
	}

	var req struct {
		Checked bool `json:"checked"`
	}
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	item, err := h.db.SetItemChecked(c.Context(), middleware.GetUserID(c), itemID, req.Checked)
	if err != nil {
		return ServiceError(c, err, "failed to update item")
	}
	return Success(c, item)
}

// DeleteListItem soft-deletes one item
func (h *Handler) DeleteListItem(c *fiber.Ctx) error {
	itemID, err := c.ParamsInt("itemId")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid item id")
	}

	if err := h.db.DeleteItem(c.Context(), middleware.GetUserID(c), itemID); err != nil {
		return ServiceError(c, err, "failed to delete item")
	}
	return Success(c, fiber.Map{"deleted": true})
}
