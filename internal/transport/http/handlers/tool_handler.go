package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/scanops/console/internal/core/ports"
)

type ToolHandler struct {
	catalog ports.ToolCatalog
}

func NewToolHandler(catalog ports.ToolCatalog) *ToolHandler {
	return &ToolHandler{catalog: catalog}
}

func (h *ToolHandler) GetTools(c *fiber.Ctx) error {
	return c.JSON(h.catalog.List())
}
