package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/scanops/console/internal/core/services"
	"github.com/scanops/console/internal/infrastructure/logger"
	"github.com/scanops/console/internal/transport/http/dto"
)

type TaskHandler struct {
	console *services.Console
	logger  *logger.Logger
}

func NewTaskHandler(console *services.Console, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{console: console, logger: logger}
}

func (h *TaskHandler) GetTasks(c *fiber.Ctx) error {
	tasks := h.console.VisibleTasks()
	h.logger.Debugw("task_list_request", "count", len(tasks))
	return c.JSON(dto.ToTaskResponses(tasks))
}

func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	id := c.Params("id")
	task, err := h.console.VisibleTask(id)
	if err != nil {
		h.logger.Warnw("task_get_not_found", "id", id)
		return fail(c, err)
	}
	return c.JSON(dto.ToTaskResponse(*task))
}

func (h *TaskHandler) CancelTask(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.console.VisibleTask(id); err != nil {
		return fail(c, err)
	}

	h.logger.Infow("task_cancel_request", "id", id)
	if err := h.console.Cancels.RequestCancel(c.UserContext(), id); err != nil {
		h.logger.Warnw("task_cancel_failed", "id", id, "error", err)
		return fail(c, err)
	}
	task, err := h.console.Tasks.GetTask(id)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.ToTaskResponse(*task))
}

func (h *TaskHandler) KillTask(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.console.VisibleTask(id); err != nil {
		return fail(c, err)
	}

	h.logger.Infow("task_kill_request", "id", id)
	if err := h.console.Cancels.Kill(c.UserContext(), id); err != nil {
		h.logger.Warnw("task_kill_failed", "id", id, "error", err)
		return fail(c, err)
	}
	task, err := h.console.Tasks.GetTask(id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.ToTaskResponse(*task))
}

func (h *TaskHandler) CancelAll(c *fiber.Ctx) error {
	h.logger.Infow("task_cancel_all_request", "workspace_id", h.console.Workspace.Active())
	result, err := h.console.Cancels.CancelAll(c.UserContext())
	if err != nil {
		h.logger.Errorw("task_cancel_all_failed", "error", err)
		return fail(c, err)
	}
	return c.JSON(result)
}

// ClearTasks removes the finished tasks of the active workspace.
func (h *TaskHandler) ClearTasks(c *fiber.Ctx) error {
	removed := h.console.ClearTasks()
	h.logger.Infow("task_clear_success", "removed", removed)
	return c.JSON(fiber.Map{"removed": removed})
}
