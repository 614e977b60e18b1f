package container

import (
	"context"
	"fmt"

	"github.com/scanops/console/internal/config"
	"github.com/scanops/console/internal/core/services"
	"github.com/scanops/console/internal/infrastructure/catalog"
	"github.com/scanops/console/internal/infrastructure/db"
	"github.com/scanops/console/internal/infrastructure/logger"
	"github.com/scanops/console/internal/infrastructure/push"
	"github.com/scanops/console/internal/infrastructure/remote"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Container owns every long-lived component of one console session.
type Container struct {
	Config  *config.Config
	Logger  *logger.Logger
	Catalog *catalog.Catalog
	Backend *remote.Client
	Console *services.Console
	Journal *services.Journal
	Push    *push.Adapter

	db *gorm.DB
}

func New(cfg *config.Config, log *logger.Logger) (*Container, error) {
	tools, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tool catalog: %w", err)
	}

	backend := remote.NewClient(remote.ClientConfig{
		BaseURL: cfg.Backend.URL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
		Logger:  log,
	})

	workspace := services.NewWorkspace(cfg.Console.DefaultWorkspace)
	logs := services.NewLogStore(cfg.Console.LogCapacity, log)
	tasks := services.NewTaskService(workspace, logs, cfg.Console.TaskCapacity)

	reconciler := services.NewReconciler(services.ReconcilerConfig{
		Backend:          backend,
		Tasks:            tasks,
		Logs:             logs,
		Workspace:        workspace,
		Catalog:          tools,
		Logger:           log,
		Interval:         cfg.Console.PollInterval,
		FailureThreshold: cfg.Console.PollFailureThreshold,
	})

	history := services.NewHistoryLoader(services.HistoryLoaderConfig{
		Backend:  backend,
		Logs:     logs,
		Tasks:    tasks,
		Logger:   log,
		Limit:    cfg.Console.HistoryLimit,
		PageSize: cfg.Console.HistoryPageSize,
	})

	previews := services.NewPreviewService(services.PreviewServiceConfig{
		Backend:   backend,
		Catalog:   tools,
		Tasks:     tasks,
		Logs:      logs,
		Workspace: workspace,
		Tracker:   reconciler,
		Logger:    log,
	})

	cancels := services.NewCancelService(services.CancelServiceConfig{
		Backend:   backend,
		Tasks:     tasks,
		Logs:      logs,
		Workspace: workspace,
		Logger:    log,
		Timeout:   cfg.Console.CancelTimeout,
	})

	c := &Container{
		Config:  cfg,
		Logger:  log,
		Catalog: tools,
		Backend: backend,
		Console: services.NewConsole(services.ConsoleConfig{
			Workspace:  workspace,
			Logs:       logs,
			Tasks:      tasks,
			Reconciler: reconciler,
			History:    history,
			Previews:   previews,
			Cancels:    cancels,
			Logger:     log,
		}),
	}

	if cfg.Database.Enabled {
		database, err := OpenDatabase(cfg.Database)
		if err != nil {
			return nil, err
		}
		c.db = database
		c.Journal = services.NewJournal(db.NewTaskJournalRepository(database, log), tasks, log)
		log.Infow("task_journal_enabled", "driver", cfg.Database.Driver)
	}

	// the adapter reports true once its first session is up
	reconciler.SetPushConnected(false)
	if cfg.Push.Enabled && cfg.Push.URL != "" {
		c.Push = push.NewAdapter(push.AdapterConfig{
			URL:          cfg.Push.URL,
			Token:        cfg.Backend.Token,
			Logs:         logs,
			Tasks:        tasks,
			Workspace:    workspace,
			Status:       reconciler,
			Logger:       log,
			MinBackoff:   cfg.Push.MinBackoff,
			MaxBackoff:   cfg.Push.MaxBackoff,
			PingInterval: cfg.Push.PingInterval,
		})
	}

	return c, nil
}

// OpenDatabase connects and migrates the task journal.
func OpenDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	database, err := db.NewConnection(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(database); err != nil {
		db.Close(database)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return database, nil
}

// Run starts the background workers, opens the console for the active
// workspace and then connects the push channel. It blocks until ctx is cancelled.
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	c.Console.Reconciler.Start(ctx)
	g.Go(func() error {
		<-ctx.Done()
		c.Console.Reconciler.Wait()
		return nil
	})

	if c.Journal != nil {
		g.Go(func() error { return c.Journal.Run(ctx) })
	}

	// the push channel joins only after the active workspace is backfilled
	g.Go(func() error {
		if err := c.Console.Open(ctx); err != nil {
			c.Logger.Warnw("console_open_failed", "workspace_id", c.Console.Workspace.Active(), "error", err)
		}
		if c.Push == nil {
			return nil
		}
		return c.Push.Run(ctx)
	})

	return g.Wait()
}

func (c *Container) Close() error {
	if c.db == nil {
		return nil
	}
	return db.Close(c.db)
}
