package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/scanops/console/internal/container"
	"github.com/scanops/console/internal/infrastructure/logger"
	transporthttp "github.com/scanops/console/internal/transport/http"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workspaceFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the console and its local API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		defer log.Sync()

		if workspaceFlag != "" {
			cfg.Console.DefaultWorkspace = workspaceFlag
		}

		ctr, err := container.New(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := ctr.Close(); err != nil {
				log.Errorf("failed to close database connection: %v", err)
			}
		}()

		app := fiber.New(fiber.Config{
			ReadTimeout:           cfg.Server.ReadTimeout,
			WriteTimeout:          cfg.Server.WriteTimeout,
			IdleTimeout:           cfg.Server.IdleTimeout,
			ErrorHandler:          globalErrorHandler(log),
			DisableStartupMessage: true,
		})
		app.Use(recover.New(recover.Config{EnableStackTrace: true}))
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(cfg.Auth.AllowedOrigins, ","),
			AllowHeaders: "Origin, Content-Type, Accept",
			AllowMethods: "GET, POST, PUT, DELETE",
		}))
		app.Use(requestLogger(log))

		app.Get("/health", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"status":         "ok",
				"workspace_id":   ctr.Console.Workspace.Active(),
				"push_connected": ctr.Push != nil && ctr.Push.Connected(),
			})
		})
		transporthttp.SetupRoutes(app, transporthttp.RouterConfig{
			Console: ctr.Console,
			Journal: ctr.Journal,
			Catalog: ctr.Catalog,
			Logger:  log,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return ctr.Run(ctx) })
		g.Go(func() error {
			log.Infof("server started on %s", cfg.Server.Address())
			if err := app.Listen(cfg.Server.Address()); err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			log.Info("shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				log.Errorf("server forced to shutdown: %v", err)
			}
			return nil
		})

		err = g.Wait()
		log.Info("server exited gracefully")
		return err
	},
}

func init() {
	serveCmd.Flags().StringVarP(&workspaceFlag, "workspace", "w", "", "workspace to open on start")
}

func requestLogger(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		reqID := uuid.New().String()
		c.Locals("request_id", reqID)
		err := c.Next()
		log.Debugw("http_access",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", reqID,
		)
		return err
	}
}

func globalErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		if code < fiber.StatusInternalServerError {
			log.Warnw("request failed", "method", c.Method(), "path", c.Path(), "status", code, "error", err.Error())
		} else {
			log.Errorw("request error", "method", c.Method(), "path", c.Path(), "status", code, "error", err.Error())
		}

		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
