package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/scanops/console/internal/core/ports"
	"github.com/scanops/console/internal/domain"
	"github.com/scanops/console/internal/infrastructure/logger"
)

const genericExecuteError = "No se pudo iniciar la ejecución"

// TaskTracker starts backend polling for a task once its session id is known.
type TaskTracker interface {
	Track(taskID, sessionID string)
}

// ExecuteFunc runs a confirmed preview and returns the id of the task it started.
type ExecuteFunc func(ctx context.Context, tool domain.Tool, workspaceID string, preview domain.CommandPreview, params map[string]interface{}) (string, error)

type PreviewServiceConfig struct {
	Backend   ports.Backend
	Catalog   ports.ToolCatalog
	Tasks     *TaskService
	Logs      *LogStore
	Workspace *Workspace
	Tracker   TaskTracker
	Logger    *logger.Logger
	// Execute replaces the default start-task-then-submit flow.
	Execute ExecuteFunc
}

// PreviewService runs the preview, confirm, execute handshake. At most one
// preview is open per workspace.
type PreviewService struct {
	backend   ports.Backend
	catalog   ports.ToolCatalog
	tasks     *TaskService
	logs      *LogStore
	workspace *Workspace
	tracker   TaskTracker
	log       *logger.Logger
	execute   ExecuteFunc

	mu   sync.Mutex
	open map[string]*PreviewSession
}

func NewPreviewService(cfg PreviewServiceConfig) *PreviewService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	s := &PreviewService{
		backend:   cfg.Backend,
		catalog:   cfg.Catalog,
		tasks:     cfg.Tasks,
		logs:      cfg.Logs,
		workspace: cfg.Workspace,
		tracker:   cfg.Tracker,
		log:       log,
		execute:   cfg.Execute,
		open:      make(map[string]*PreviewSession),
	}
	if s.execute == nil {
		s.execute = s.submit
	}
	return s
}

// Open requests a dry-run description of tool with params. A failure leaves
// nothing open and starts nothing; the caller may retry with edited params.
func (s *PreviewService) Open(ctx context.Context, toolName string, params map[string]interface{}) (*PreviewSession, error) {
	tool, ok := s.catalog.Lookup(toolName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPreviewUnknownTool, toolName)
	}
	workspaceID := s.workspace.Active()

	preview, err := s.backend.Preview(ctx, tool, params)
	if err != nil {
		s.log.Warnw("preview_failed", "tool", tool.Name, "workspace_id", workspaceID, "error", err)
		s.logs.Append(domain.LogEntry{
			Level:       domain.LogLevelError,
			Module:      tool.Module,
			Message:     fmt.Sprintf("Error al generar la vista previa de %s: %s", tool.DisplayName, errorMessage(err, "solicitud rechazada")),
			WorkspaceID: workspaceID,
			Source:      "console",
		})
		return nil, err
	}

	session := &PreviewSession{
		ID:          uuid.New().String(),
		Tool:        tool,
		WorkspaceID: workspaceID,
		preview:     *preview,
		svc:         s,
	}

	s.mu.Lock()
	previous := s.open[workspaceID]
	s.open[workspaceID] = session
	s.mu.Unlock()
	if previous != nil {
		previous.Cancel()
	}

	s.log.Infow("preview_open", "tool", tool.Name, "workspace_id", workspaceID, "preview_id", session.ID)
	return session, nil
}

// Current returns the open preview of the active workspace.
func (s *PreviewService) Current() (*PreviewSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.open[s.workspace.Active()]
	if !ok {
		return nil, ErrPreviewNotOpen
	}
	return session, nil
}

func (s *PreviewService) release(session *PreviewSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open[session.WorkspaceID] == session {
		delete(s.open, session.WorkspaceID)
	}
}

// submit is the default ExecuteFunc: start the task, submit the job, attach the session id.
func (s *PreviewService) submit(ctx context.Context, tool domain.Tool, workspaceID string, preview domain.CommandPreview, params map[string]interface{}) (string, error) {
	target, _ := params[tool.TargetParam].(string)
	taskID := s.tasks.StartTaskIn(workspaceID, tool.DisplayName, tool.Module, preview.CommandString, target)

	resp, err := s.backend.Execute(ctx, tool, params)
	if err != nil {
		s.log.Warnw("execute_failed", "tool", tool.Name, "task_id", taskID, "error", err)
		s.tasks.FailTask(taskID, errorMessage(err, genericExecuteError))
		return taskID, err
	}
	if resp.ScanID == "" {
		s.tasks.FailTask(taskID, genericExecuteError)
		return taskID, fmt.Errorf("execute %s: backend returned no scan id", tool.Name)
	}

	sessionID := resp.ScanID
	s.tasks.UpdateTask(taskID, domain.TaskPatch{SessionID: &sessionID})
	if resp.Message != "" {
		s.tasks.UpdateTaskProgress(taskID, 0, resp.Message)
	}
	if s.tracker != nil {
		s.tracker.Track(taskID, sessionID)
	}
	s.log.Infow("execute_ok", "tool", tool.Name, "task_id", taskID, "session_id", sessionID)
	return taskID, nil
}

// PreviewSession is one opened preview. It executes at most once.
type PreviewSession struct {
	ID          string
	Tool        domain.Tool
	WorkspaceID string

	mu      sync.Mutex
	preview domain.CommandPreview
	edited  map[string]interface{}
	editing bool
	closed  bool
	svc     *PreviewService
}

// Preview returns the backend's description, untouched by local edits.
func (p *PreviewSession) Preview() domain.CommandPreview {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.preview
	out.Parameters = copyParams(p.preview.Parameters)
	return out
}

// Parameters returns the edited parameters if any edit was made, else the originals.
func (p *PreviewSession) Parameters() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.edited != nil {
		return copyParams(p.edited)
	}
	return copyParams(p.preview.Parameters)
}

// Editing reports whether the edit view is shown.
func (p *PreviewSession) Editing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.editing
}

func (p *PreviewSession) ToggleEdit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.editing = !p.editing
	return p.editing
}

// EditParameters merges changes into the local copy. The command vector is not recomputed.
func (p *PreviewSession) EditParameters(changes map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPreviewClosed
	}
	if p.edited == nil {
		p.edited = copyParams(p.preview.Parameters)
	}
	for k, v := range changes {
		p.edited[k] = v
	}
	return nil
}

func (p *PreviewSession) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Confirm hands the (possibly edited) parameters to the execute step. Only the
// first Confirm on an open session executes anything.
func (p *PreviewSession) Confirm(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", ErrPreviewClosed
	}
	p.closed = true
	params := p.preview.Parameters
	if p.edited != nil {
		params = p.edited
	}
	params = copyParams(params)
	preview := p.preview
	p.mu.Unlock()

	p.svc.release(p)
	return p.svc.execute(ctx, p.Tool, p.WorkspaceID, preview, params)
}

// Cancel closes the session without executing.
func (p *PreviewSession) Cancel() {
	p.mu.Lock()
	wasOpen := !p.closed
	p.closed = true
	p.mu.Unlock()
	if wasOpen {
		p.svc.release(p)
	}
}

func copyParams(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type userMessager interface {
	UserMessage() string
}

// errorMessage prefers the backend's own message, then fallback.
func errorMessage(err error, fallback string) string {
	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
