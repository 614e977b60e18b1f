package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/scanops/console/internal/core/services"
	"github.com/scanops/console/internal/infrastructure/logger"
	"github.com/scanops/console/internal/transport/http/dto"
)

type WorkspaceHandler struct {
	console *services.Console
	logger  *logger.Logger
}

func NewWorkspaceHandler(console *services.Console, logger *logger.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{console: console, logger: logger}
}

func (h *WorkspaceHandler) GetWorkspace(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"workspace_id": h.console.Workspace.Active()})
}

func (h *WorkspaceHandler) SwitchWorkspace(c *fiber.Ctx) error {
	var req dto.SwitchWorkspaceRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("workspace_switch_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs})
	}

	h.logger.Infow("workspace_switch_request", "workspace_id", req.WorkspaceID)
	if err := h.console.SwitchWorkspace(c.UserContext(), req.WorkspaceID); err != nil {
		// The switch itself succeeded unless the id was rejected; open failures are reported but not fatal
		if statusFor(err) == fiber.StatusBadRequest {
			return fail(c, err)
		}
		h.logger.Warnw("workspace_switch_open_failed", "workspace_id", req.WorkspaceID, "error", err)
	}
	return c.JSON(fiber.Map{"workspace_id": h.console.Workspace.Active()})
}

// Sync re-runs recovery of backend jobs for the active workspace.
func (h *WorkspaceHandler) Sync(c *fiber.Ctx) error {
	h.logger.Infow("sync_request", "workspace_id", h.console.Workspace.Active())
	result, err := h.console.Reconciler.SyncRunning(c.UserContext())
	if err != nil {
		h.logger.Errorw("sync_failed", "error", err)
		return fail(c, err)
	}
	return c.JSON(result)
}
