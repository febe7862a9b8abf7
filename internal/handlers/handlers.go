package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/hearthware/homeboard/internal/config"
	"github.com/hearthware/homeboard/internal/database"
	"github.com/hearthware/homeboard/internal/services"
)

// Handler holds all handler dependencies
type Handler struct {
	db         *database.DB
	cfg        *config.Config
	reconciler *services.Reconciler
	imports    *services.ImportService
}

// New creates a new Handler instance
func New(db *database.DB, cfg *config.Config, reconciler *services.Reconciler, imports *services.ImportService) *Handler {
	return &Handler{
		db:         db,
		cfg:        cfg,
		reconciler: reconciler,
		imports:    imports,
	}
}

// ErrorHandler is a custom error handler for Fiber
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}

// APIResponse is a standard API response structure
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success returns a successful response
func Success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(APIResponse{
		Success: true,
		Data:    data,
	})
}

// Created returns a successful response with status 201
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(APIResponse{
		Success: true,
		Data:    data,
	})
}

// Error returns an error response
func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error:   message,
	})
}

// ServiceError maps service layer sentinel errors onto HTTP statuses. An undo
// conflict additionally carries the entries that could not be reversed.
func ServiceError(c *fiber.Ctx, err error, fallback string) error {
	var undoErr *services.UndoConflictError
	if errors.As(err, &undoErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success":  false,
			"error":    undoErr.Error(),
			"failures": undoErr.Failures,
		})
	}

	switch {
	case errors.Is(err, services.ErrValidation):
		return Error(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return Error(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		return Error(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrTimeout):
		return Error(c, fiber.StatusGatewayTimeout, err.Error())
	default:
		return Error(c, fiber.StatusInternalServerError, fallback)
	}
}
