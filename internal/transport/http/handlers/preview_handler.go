package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/scanops/console/internal/core/services"
	"github.com/scanops/console/internal/infrastructure/logger"
	"github.com/scanops/console/internal/transport/http/dto"
)

type PreviewHandler struct {
	previews *services.PreviewService
	logger   *logger.Logger
}

func NewPreviewHandler(previews *services.PreviewService, logger *logger.Logger) *PreviewHandler {
	return &PreviewHandler{previews: previews, logger: logger}
}

func toPreviewResponse(s *services.PreviewSession) dto.PreviewResponse {
	return dto.PreviewResponse{
		ID:          s.ID,
		Tool:        s.Tool.Name,
		WorkspaceID: s.WorkspaceID,
		Preview:     s.Preview(),
		Parameters:  s.Parameters(),
		Editing:     s.Editing(),
	}
}

func (h *PreviewHandler) OpenPreview(c *fiber.Ctx) error {
	var req dto.OpenPreviewRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("preview_open_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs})
	}

	h.logger.Infow("preview_open_request", "tool", req.Tool)
	session, err := h.previews.Open(c.UserContext(), req.Tool, req.Parameters)
	if err != nil {
		h.logger.Warnw("preview_open_failed", "tool", req.Tool, "error", err)
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toPreviewResponse(session))
}

func (h *PreviewHandler) GetPreview(c *fiber.Ctx) error {
	session, err := h.previews.Current()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(toPreviewResponse(session))
}

func (h *PreviewHandler) EditParameters(c *fiber.Ctx) error {
	var req dto.EditPreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs})
	}
	session, err := h.previews.Current()
	if err != nil {
		return fail(c, err)
	}
	if !session.Editing() {
		session.ToggleEdit()
	}
	if err := session.EditParameters(req.Parameters); err != nil {
		return fail(c, err)
	}
	return c.JSON(toPreviewResponse(session))
}

func (h *PreviewHandler) Confirm(c *fiber.Ctx) error {
	session, err := h.previews.Current()
	if err != nil {
		return fail(c, err)
	}

	h.logger.Infow("preview_confirm_request", "preview_id", session.ID, "tool", session.Tool.Name)
	taskID, err := session.Confirm(c.UserContext())
	if err != nil {
		h.logger.Warnw("preview_confirm_failed", "preview_id", session.ID, "task_id", taskID, "error", err)
		if taskID != "" {
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error(), "task_id": taskID})
		}
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.ExecuteResponse{TaskID: taskID})
}

func (h *PreviewHandler) Cancel(c *fiber.Ctx) error {
	session, err := h.previews.Current()
	if err != nil {
		return fail(c, err)
	}
	session.Cancel()
	h.logger.Infow("preview_cancel_success", "preview_id", session.ID)
	return c.SendStatus(fiber.StatusNoContent)
}
