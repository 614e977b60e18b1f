package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/scanops/console/internal/core/services"
	"github.com/scanops/console/internal/domain"
)

// statusFor maps service errors to HTTP status codes. Anything unknown came from the backend.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrTaskNotFound), errors.Is(err, services.ErrPreviewNotOpen),
		errors.Is(err, domain.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrTaskTerminal), errors.Is(err, services.ErrPreviewClosed):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrWorkspaceInvalid), errors.Is(err, services.ErrPreviewUnknownTool):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusBadGateway
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}
