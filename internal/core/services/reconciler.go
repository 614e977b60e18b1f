package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scanops/console/internal/core/ports"
	"github.com/scanops/console/internal/domain"
	"github.com/scanops/console/internal/infrastructure/logger"
)

const (
	DefaultPollInterval         = 3 * time.Second
	DisconnectedPollInterval    = 2 * time.Second
	DefaultPollFailureThreshold = 5
)

type ReconcilerConfig struct {
	Backend          ports.Backend
	Tasks            *TaskService
	Logs             *LogStore
	Workspace        *Workspace
	Catalog          ports.ToolCatalog
	Logger           *logger.Logger
	Interval         time.Duration
	FailureThreshold int
}

// Reconciler keeps local tasks aligned with the backend scan records they are
// correlated to through their session id.
type Reconciler struct {
	backend          ports.Backend
	tasks            *TaskService
	logs             *LogStore
	workspace        *Workspace
	catalog          ports.ToolCatalog
	log              *logger.Logger
	interval         time.Duration
	failureThreshold int

	mu    sync.Mutex
	base  context.Context
	polls map[string]*poll
	wg    sync.WaitGroup

	pushConnected atomic.Bool
}

type poll struct {
	cancel context.CancelFunc
}

// SyncResult summarises one multi-job reconciliation pass.
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultPollFailureThreshold
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	r := &Reconciler{
		backend:          cfg.Backend,
		tasks:            cfg.Tasks,
		logs:             cfg.Logs,
		workspace:        cfg.Workspace,
		catalog:          cfg.Catalog,
		log:              log,
		interval:         interval,
		failureThreshold: threshold,
		base:             context.Background(),
		polls:            make(map[string]*poll),
	}
	r.pushConnected.Store(true)

	cfg.Tasks.OnTerminal(func(t domain.Task) {
		if t.SessionID != "" {
			r.stop(t.SessionID)
		}
	})
	return r
}

// Start binds poll loops to ctx; cancelling it stops every loop.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.base = ctx
}

// Wait blocks until every poll loop has returned.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// SetPushConnected records the push channel state. Polling speeds up while it is down.
func (r *Reconciler) SetPushConnected(connected bool) {
	r.pushConnected.Store(connected)
}

func (r *Reconciler) currentInterval() time.Duration {
	if !r.pushConnected.Load() && r.interval > DisconnectedPollInterval {
		return DisconnectedPollInterval
	}
	return r.interval
}

// Track starts polling sessionID on behalf of taskID. Repeated calls for the same session are ignored.
func (r *Reconciler) Track(taskID, sessionID string) {
	if sessionID == "" {
		return
	}

	r.mu.Lock()
	if _, ok := r.polls[sessionID]; ok {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(r.base)
	p := &poll{cancel: cancel}
	r.polls[sessionID] = p
	r.wg.Add(1)
	r.mu.Unlock()

	r.log.Infow("reconcile_track", "task_id", taskID, "session_id", sessionID)
	go r.pollLoop(ctx, p, taskID, sessionID)
}

// Tracking reports whether sessionID currently has a poll loop.
func (r *Reconciler) Tracking(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.polls[sessionID]
	return ok
}

func (r *Reconciler) stop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.polls[sessionID]; ok {
		p.cancel()
		delete(r.polls, sessionID)
	}
}

func (r *Reconciler) release(sessionID string, p *poll) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.cancel()
	if r.polls[sessionID] == p {
		delete(r.polls, sessionID)
	}
}

func (r *Reconciler) pollLoop(ctx context.Context, p *poll, taskID, sessionID string) {
	defer r.wg.Done()
	defer r.release(sessionID, p)

	failures := 0
	timer := time.NewTimer(r.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		done, err := r.reconcileOnce(ctx, taskID, sessionID)
		if err != nil {
			failures++
			r.log.Warnw("reconcile_poll_failed", "task_id", taskID, "session_id", sessionID, "attempt", failures, "error", err)
			if failures == r.failureThreshold {
				r.warnPersistentFailure(taskID, sessionID, failures, err)
			}
		} else {
			failures = 0
		}
		if done {
			r.log.Infow("reconcile_untrack", "task_id", taskID, "session_id", sessionID)
			return
		}
		timer.Reset(r.currentInterval())
	}
}

func (r *Reconciler) warnPersistentFailure(taskID, sessionID string, attempts int, err error) {
	task, getErr := r.tasks.GetTask(taskID)
	if getErr != nil {
		return
	}
	r.logs.Append(domain.LogEntry{
		Level:       domain.LogLevelWarning,
		Module:      task.Module,
		Message:     fmt.Sprintf("No se pudo consultar el estado del escaneo %s tras %d intentos: %v", sessionID, attempts, err),
		TaskID:      taskID,
		WorkspaceID: task.WorkspaceID,
		Source:      "console",
	})
}

// reconcileOnce applies one backend status fetch. done is true once the task is terminal.
// A fetch error never fails the task.
func (r *Reconciler) reconcileOnce(ctx context.Context, taskID, sessionID string) (bool, error) {
	task, err := r.tasks.GetTask(taskID)
	if err != nil {
		return true, nil
	}
	if task.Status.IsTerminal() {
		return true, nil
	}

	status, err := r.backend.ScanStatus(ctx, sessionID)
	if err != nil {
		return false, err
	}

	if status.Progress != task.Progress && status.Status == domain.ScanStatusRunning {
		if err := r.tasks.UpdateTaskProgress(taskID, status.Progress, progressMessage(status.Progress)); errors.Is(err, ErrTaskTerminal) {
			return true, nil
		}
	}

	switch status.Status {
	case domain.ScanStatusCompleted:
		r.tasks.CompleteTask(taskID, completionSummary(status))
		return true, nil
	case domain.ScanStatusFailed:
		msg := status.Error
		if msg == "" {
			msg = "Error desconocido en el escaneo"
		}
		r.tasks.FailTask(taskID, msg)
		return true, nil
	case domain.ScanStatusCancelled:
		r.tasks.CancelTask(taskID)
		return true, nil
	}
	return false, nil
}

// SyncRunning matches every running backend scan of the active workspace against
// local tasks, creating the missing ones. Running it twice on the same data is a no-op.
func (r *Reconciler) SyncRunning(ctx context.Context) (SyncResult, error) {
	workspaceID := r.workspace.Active()
	var result SyncResult

	running, err := r.backend.RunningScans(ctx, workspaceID)
	if err != nil {
		r.log.Warnw("reconcile_sync_failed", "workspace_id", workspaceID, "error", err)
		return result, fmt.Errorf("failed to list running scans: %w", err)
	}

	for _, scan := range running.Scans {
		if scan.ID == "" || (scan.WorkspaceID != "" && scan.WorkspaceID != workspaceID) {
			result.Skipped++
			continue
		}

		existing, found := r.tasks.FindBySession(scan.ID)
		if !found {
			name, module := r.describeScan(scan)
			taskID := r.tasks.StartTaskIn(workspaceID, name, module, scan.Command, scan.Target)
			sessionID := scan.ID
			r.tasks.UpdateTask(taskID, domain.TaskPatch{SessionID: &sessionID})
			if scan.Progress > 0 {
				r.tasks.UpdateTaskProgress(taskID, scan.Progress, "")
			}
			r.Track(taskID, sessionID)
			result.Created++
			continue
		}

		if existing.Status.IsTerminal() {
			result.Skipped++
			continue
		}
		if clampProgress(scan.Progress) != existing.Progress {
			r.tasks.UpdateTaskProgress(existing.ID, scan.Progress, "")
			result.Updated++
		}
		r.Track(existing.ID, scan.ID)
	}

	r.log.Infow("reconcile_sync_ok",
		"workspace_id", workspaceID,
		"backend_running", len(running.Scans),
		"created", result.Created,
		"updated", result.Updated,
	)
	return result, nil
}

func (r *Reconciler) describeScan(scan domain.RunningScan) (string, string) {
	if r.catalog != nil {
		if tool, ok := r.catalog.Lookup(scan.ScanType); ok {
			return tool.DisplayName, tool.Module
		}
	}
	name := scan.ScanType
	if name == "" {
		name = "scan"
	}
	return fmt.Sprintf("Escaneo %s", name), "Scanning"
}

func progressMessage(progress int) string {
	switch {
	case progress < 25:
		return fmt.Sprintf("Descubriendo objetivos... (%d%%)", progress)
	case progress < 50:
		return fmt.Sprintf("Escaneando puertos... (%d%%)", progress)
	case progress < 75:
		return fmt.Sprintf("Detectando servicios... (%d%%)", progress)
	default:
		return fmt.Sprintf("Finalizando... (%d%%)", progress)
	}
}

func completionSummary(s *domain.ScanStatus) string {
	var parts []string
	if s.HostsFound > 0 {
		parts = append(parts, fmt.Sprintf("%d hosts", s.HostsFound))
	}
	if s.PortsFound > 0 {
		parts = append(parts, fmt.Sprintf("%d puertos", s.PortsFound))
	}
	if s.ServicesFound > 0 {
		parts = append(parts, fmt.Sprintf("%d servicios", s.ServicesFound))
	}
	if s.FindingsFound > 0 {
		parts = append(parts, fmt.Sprintf("%d hallazgos", s.FindingsFound))
	}
	if len(parts) == 0 {
		return "Escaneo completado"
	}
	return fmt.Sprintf("Escaneo completado: %s encontrados", strings.Join(parts, ", "))
}
