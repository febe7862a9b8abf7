package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/hearthware/homeboard/internal/middleware"
	"github.com/hearthware/homeboard/internal/models"
)

// CreateImport submits raw recipe text for background parsing
func (h *Handler) CreateImport(c *fiber.Ctx) error {
	var req models.CreateImportRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	job, err := h.imports.Create(c.Context(), middleware.GetUserID(c), req.RawText)
	if err != nil {
		return ServiceError(c, err, "failed to create import")
	}
	return c.Status(fiber.StatusAccepted).JSON(APIResponse{
		Success: true,
		Data:    job,
	})
}

// GetCurrentImport resolves the caller's in-flight import, if any, so a
// reloaded client can resume polling
func (h *Handler) GetCurrentImport(c *fiber.Ctx) error {
	job, err := h.imports.Current(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return ServiceError(c, err, "failed to resolve current import")
	}
	return Success(c, job)
}

// GetImport returns one import job's status snapshot
func (h *Handler) GetImport(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid import id")
	}

	job, err := h.imports.Get(c.Context(), middleware.GetUserID(c), id)
	if err != nil {
		return ServiceError(c, err, "failed to get import")
	}
	return Success(c, job)
}

// ConfirmImport applies caller edits over the parsed result and creates the
// recipe
func (h *Handler) ConfirmImport(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid import id")
	}

	var req models.ConfirmImportRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	recipe, err := h.imports.Confirm(c.Context(), middleware.GetUserID(c), id, &req)
	if err != nil {
		return ServiceError(c, err, "failed to confirm import")
	}
	return Created(c, recipe)
}

// ListPendingImports reports jobs awaiting a worker, across all users. Admin
// ops surface for spotting a stalled pipeline.
func (h *Handler) ListPendingImports(c *fiber.Ctx) error {
	ids, err := h.imports.Pending(c.Context())
	if err != nil {
		return ServiceError(c, err, "failed to list pending imports")
	}
	return Success(c, fiber.Map{"pending": ids, "count": len(ids)})
}

// CancelImport discards an import job
func (h *Handler) CancelImport(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid import id")
	}

	if err := h.imports.Cancel(c.Context(), middleware.GetUserID(c), id); err != nil {
		return ServiceError(c, err, "failed to cancel import")
	}
	return Success(c, fiber.Map{"cancelled": true})
}
