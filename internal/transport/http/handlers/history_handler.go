package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/scanops/console/internal/core/services"
	"github.com/scanops/console/internal/infrastructure/logger"
)

type HistoryHandler struct {
	journal   *services.Journal
	workspace *services.Workspace
	logger    *logger.Logger
}

func NewHistoryHandler(journal *services.Journal, workspace *services.Workspace, logger *logger.Logger) *HistoryHandler {
	return &HistoryHandler{journal: journal, workspace: workspace, logger: logger}
}

// GetHistory lists journaled tasks of the active workspace.
func (h *HistoryHandler) GetHistory(c *fiber.Ctx) error {
	if h.journal == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Task journal disabled"})
	}
	limit := c.QueryInt("limit", 50)
	records, err := h.journal.Recent(c.UserContext(), h.workspace.Active(), limit)
	if err != nil {
		h.logger.Errorw("history_list_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(records)
}

// GetHistoryRecord returns one journaled task of the active workspace.
func (h *HistoryHandler) GetHistoryRecord(c *fiber.Ctx) error {
	if h.journal == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Task journal disabled"})
	}
	record, err := h.journal.Get(c.UserContext(), h.workspace.Active(), c.Params("task_id"))
	if err != nil {
		if statusFor(err) != fiber.StatusNotFound {
			h.logger.Errorw("history_get_failed", "task_id", c.Params("task_id"), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return fail(c, err)
	}
	return c.JSON(record)
}
