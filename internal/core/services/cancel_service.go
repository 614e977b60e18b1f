package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scanops/console/internal/core/ports"
	"github.com/scanops/console/internal/domain"
	"github.com/scanops/console/internal/infrastructure/logger"
)

const DefaultCancelTimeout = 10 * time.Second

type CancelServiceConfig struct {
	Backend   ports.Backend
	Tasks     *TaskService
	Logs      *LogStore
	Workspace *Workspace
	Logger    *logger.Logger
	Timeout   time.Duration
}

// CancelService stops tasks in two steps: the task is flagged as cancelling
// while the backend is asked to stop, and only goes terminal on acknowledgement
// or after the timeout.
type CancelService struct {
	backend   ports.Backend
	tasks     *TaskService
	logs      *LogStore
	workspace *Workspace
	log       *logger.Logger
	timeout   time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewCancelService(cfg CancelServiceConfig) *CancelService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCancelTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	s := &CancelService{
		backend:   cfg.Backend,
		tasks:     cfg.Tasks,
		logs:      cfg.Logs,
		workspace: cfg.Workspace,
		log:       log,
		timeout:   timeout,
		pending:   make(map[string]*time.Timer),
	}
	// a task closed by any other path drops its pending fallback
	cfg.Tasks.OnTerminal(func(t domain.Task) { s.settle(t.ID) })
	return s
}

// RequestCancel asks the backend to stop the task's job. The local task stays
// running with the cancelling flag until the backend answers or the timeout fires.
func (s *CancelService) RequestCancel(ctx context.Context, taskID string) error {
	task, err := s.tasks.GetTask(taskID)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return ErrTaskTerminal
	}
	if task.SessionID == "" {
		return s.tasks.CancelTask(taskID)
	}

	s.mu.Lock()
	if _, inFlight := s.pending[taskID]; inFlight {
		s.mu.Unlock()
		return nil
	}
	s.pending[taskID] = time.AfterFunc(s.timeout, func() {
		if !s.settle(taskID) {
			return
		}
		s.log.Warnw("cancel_timeout", "task_id", taskID, "session_id", task.SessionID)
		s.tasks.CancelTask(taskID)
	})
	s.mu.Unlock()

	s.tasks.MarkCancelling(taskID, true)
	s.append(*task, domain.LogLevelWarning, fmt.Sprintf("Cancelando tarea: %s", task.Name))

	result, err := s.backend.CancelScan(ctx, task.SessionID)
	if err != nil {
		s.log.Warnw("cancel_request_failed", "task_id", taskID, "session_id", task.SessionID, "error", err)
		s.append(*task, domain.LogLevelWarning, fmt.Sprintf("El backend no confirmó la cancelación: %s", errorMessage(err, err.Error())))
		return nil
	}

	if !s.settle(taskID) {
		return nil
	}
	s.log.Infow("cancel_ack", "task_id", taskID, "session_id", task.SessionID, "process_terminated", result.ProcessTerminated)
	if !result.ProcessTerminated {
		s.append(*task, domain.LogLevelWarning, "El proceso del escaneo podría seguir ejecutándose en el backend")
	}
	return s.tasks.CancelTask(taskID)
}

// Kill marks the task cancelled immediately and asks the backend to stop it on a best-effort basis.
func (s *CancelService) Kill(ctx context.Context, taskID string) error {
	task, err := s.tasks.GetTask(taskID)
	if err != nil {
		return err
	}
	s.settle(taskID)
	if err := s.tasks.KillTask(taskID); err != nil {
		return err
	}
	if task.SessionID == "" {
		return nil
	}
	if _, err := s.backend.CancelScan(ctx, task.SessionID); err != nil {
		s.log.Warnw("kill_backend_cancel_failed", "task_id", taskID, "session_id", task.SessionID, "error", err)
	}
	return nil
}

// CancelAll cancels every backend job of the active workspace and closes the
// matching local tasks.
func (s *CancelService) CancelAll(ctx context.Context) (*domain.CancelAllResult, error) {
	workspaceID := s.workspace.Active()
	result, err := s.backend.CancelAll(ctx, workspaceID)
	if err != nil {
		s.log.Warnw("cancel_all_failed", "workspace_id", workspaceID, "error", err)
		return nil, fmt.Errorf("failed to cancel scans: %w", err)
	}

	for _, scanID := range result.CancelledIDs {
		if t, ok := s.tasks.FindBySession(scanID); ok {
			s.settle(t.ID)
			s.tasks.CancelTask(t.ID)
		}
	}
	for _, scanID := range result.FailedIDs {
		entry := domain.LogEntry{
			Level:       domain.LogLevelWarning,
			Module:      "Console",
			Message:     fmt.Sprintf("No se pudo cancelar el escaneo %s", scanID),
			WorkspaceID: workspaceID,
			Source:      "console",
		}
		if t, ok := s.tasks.FindBySession(scanID); ok {
			entry.TaskID = t.ID
			entry.Module = t.Module
		}
		s.logs.Append(entry)
	}
	s.logs.Append(domain.LogEntry{
		Level:       domain.LogLevelInfo,
		Module:      "Console",
		Message:     fmt.Sprintf("Cancelación masiva: %d cancelados, %d fallidos de %d", result.Cancelled, result.Failed, result.Total),
		WorkspaceID: workspaceID,
		Source:      "console",
	})
	return result, nil
}

// settle stops the timeout timer. It returns false if the timer already fired.
func (s *CancelService) settle(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.pending[taskID]
	if !ok {
		return false
	}
	delete(s.pending, taskID)
	timer.Stop()
	return true
}

func (s *CancelService) append(t domain.Task, level domain.LogLevel, message string) {
	s.logs.Append(domain.LogEntry{
		Level:       level,
		Module:      t.Module,
		Message:     message,
		TaskID:      t.ID,
		WorkspaceID: t.WorkspaceID,
		Source:      "console",
	})
}
