package services

import (
	"context"
	"strings"

	"github.com/scanops/console/internal/domain"
	"github.com/scanops/console/internal/infrastructure/logger"
)

// Console is the session-wide context object: the active workspace plus the
// task and log stores. Reads go through workspace-filtered views.
type Console struct {
	Workspace  *Workspace
	Logs       *LogStore
	Tasks      *TaskService
	Reconciler *Reconciler
	History    *HistoryLoader
	Previews   *PreviewService
	Cancels    *CancelService

	log *logger.Logger
}

type ConsoleConfig struct {
	Workspace  *Workspace
	Logs       *LogStore
	Tasks      *TaskService
	Reconciler *Reconciler
	History    *HistoryLoader
	Previews   *PreviewService
	Cancels    *CancelService
	Logger     *logger.Logger
}

func NewConsole(cfg ConsoleConfig) *Console {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Console{
		Workspace:  cfg.Workspace,
		Logs:       cfg.Logs,
		Tasks:      cfg.Tasks,
		Reconciler: cfg.Reconciler,
		History:    cfg.History,
		Previews:   cfg.Previews,
		Cancels:    cfg.Cancels,
		log:        log,
	}
}

// VisibleTasks lists tasks of the active workspace, newest first.
func (c *Console) VisibleTasks() []domain.Task {
	ws := c.Workspace.Active()
	return c.Tasks.Tasks(func(t domain.Task) bool {
		return t.WorkspaceID == ws
	})
}

// VisibleLogs lists log entries of the active workspace matching f, oldest first.
func (c *Console) VisibleLogs(f LogFilter) []domain.LogEntry {
	ws := c.Workspace.Active()
	return c.Logs.Filter(func(e domain.LogEntry) bool {
		return e.WorkspaceID == ws && f.Match(e)
	})
}

// VisibleTask returns a task only if it belongs to the active workspace.
func (c *Console) VisibleTask(id string) (*domain.Task, error) {
	t, err := c.Tasks.GetTask(id)
	if err != nil {
		return nil, err
	}
	if t.WorkspaceID != c.Workspace.Active() {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

// Open prepares the console for the active workspace: historical backfill,
// then recovery of backend jobs that have no local task.
func (c *Console) Open(ctx context.Context) error {
	c.backfill(ctx, c.Workspace.Active())
	return c.syncRunning(ctx)
}

// SwitchWorkspace changes the view and opens the console for the new workspace.
// The backfill runs before listeners hear of the switch, so live events of the
// new workspace are appended after its history and separator. Data of other
// workspaces is left untouched.
func (c *Console) SwitchWorkspace(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrWorkspaceInvalid
	}
	if id == c.Workspace.Active() {
		return nil
	}

	c.backfill(ctx, id)
	changed, err := c.Workspace.Switch(id)
	if err != nil || !changed {
		return err
	}
	c.log.Infow("workspace_switch", "workspace_id", id)
	return c.syncRunning(ctx)
}

func (c *Console) backfill(ctx context.Context, workspaceID string) {
	if c.History == nil {
		return
	}
	if _, err := c.History.Load(ctx, workspaceID); err != nil {
		c.log.Warnw("console_open_history_failed", "workspace_id", workspaceID, "error", err)
	}
}

func (c *Console) syncRunning(ctx context.Context) error {
	if c.Reconciler == nil {
		return nil
	}
	if _, err := c.Reconciler.SyncRunning(ctx); err != nil {
		c.log.Warnw("console_open_sync_failed", "workspace_id", c.Workspace.Active(), "error", err)
		return err
	}
	return nil
}

// ClearLogs drops the active workspace's log entries.
func (c *Console) ClearLogs() int {
	return c.Logs.ClearWorkspace(c.Workspace.Active())
}

// ClearTasks drops the active workspace's finished tasks.
func (c *Console) ClearTasks() int {
	return c.Tasks.ClearWorkspace(c.Workspace.Active())
}
