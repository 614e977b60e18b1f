package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/scanops/console/internal/core/services"
	"github.com/scanops/console/internal/infrastructure/logger"
	"github.com/scanops/console/internal/transport/http/dto"
)

type LogHandler struct {
	console *services.Console
	logger  *logger.Logger
}

func NewLogHandler(console *services.Console, logger *logger.Logger) *LogHandler {
	return &LogHandler{console: console, logger: logger}
}

func filterFrom(c *fiber.Ctx) services.LogFilter {
	return services.LogFilter{
		Levels: dto.ParseLevels(c.Query("level")),
		Source: c.Query("source"),
		TaskID: c.Query("task_id"),
	}
}

func (h *LogHandler) GetLogs(c *fiber.Ctx) error {
	entries := h.console.VisibleLogs(filterFrom(c))
	if limit := c.QueryInt("limit", 0); limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return c.JSON(entries)
}

func (h *LogHandler) ClearLogs(c *fiber.Ctx) error {
	removed := h.console.ClearLogs()
	h.logger.Infow("log_clear_success", "removed", removed, "workspace_id", h.console.Workspace.Active())
	return c.JSON(fiber.Map{"removed": removed})
}
