package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/scanops/console/internal/core/ports"
	"github.com/scanops/console/internal/core/services"
	"github.com/scanops/console/internal/infrastructure/logger"
	"github.com/scanops/console/internal/transport/http/handlers"
)

type RouterConfig struct {
	Console *services.Console
	Journal *services.Journal
	Catalog ports.ToolCatalog
	Logger  *logger.Logger
}

func SetupRoutes(app *fiber.App, cfg RouterConfig) {
	workspaceHandler := handlers.NewWorkspaceHandler(cfg.Console, cfg.Logger)
	taskHandler := handlers.NewTaskHandler(cfg.Console, cfg.Logger)
	logHandler := handlers.NewLogHandler(cfg.Console, cfg.Logger)
	previewHandler := handlers.NewPreviewHandler(cfg.Console.Previews, cfg.Logger)
	historyHandler := handlers.NewHistoryHandler(cfg.Journal, cfg.Console.Workspace, cfg.Logger)
	toolHandler := handlers.NewToolHandler(cfg.Catalog)
	streamHandler := handlers.NewStreamHandler(cfg.Console, cfg.Logger)

	// Live console stream
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws/console", websocket.New(streamHandler.Handle))

	api := app.Group("/api/v1")

	api.Get("/workspace", workspaceHandler.GetWorkspace)
	api.Put("/workspace", workspaceHandler.SwitchWorkspace)
	api.Post("/sync", workspaceHandler.Sync)

	api.Get("/tools", toolHandler.GetTools)

	tasks := api.Group("/tasks")
	tasks.Get("/", taskHandler.GetTasks)
	tasks.Delete("/", taskHandler.ClearTasks)
	tasks.Post("/cancel-all", taskHandler.CancelAll)
	tasks.Get("/:id", taskHandler.GetTask)
	tasks.Post("/:id/cancel", taskHandler.CancelTask)
	tasks.Post("/:id/kill", taskHandler.KillTask)

	logs := api.Group("/logs")
	logs.Get("/", logHandler.GetLogs)
	logs.Delete("/", logHandler.ClearLogs)

	preview := api.Group("/preview")
	preview.Post("/", previewHandler.OpenPreview)
	preview.Get("/", previewHandler.GetPreview)
	preview.Delete("/", previewHandler.Cancel)
	preview.Put("/parameters", previewHandler.EditParameters)
	preview.Post("/confirm", previewHandler.Confirm)

	api.Get("/history", historyHandler.GetHistory)
	api.Get("/history/:task_id", historyHandler.GetHistoryRecord)
}
