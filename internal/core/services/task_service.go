package services

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scanops/console/internal/domain"
)

const DefaultTaskCapacity = 50

// TaskService is the registry of in-flight and recently finished tasks.
// Every mutation on a task that already reached a terminal status is ignored.
type TaskService struct {
	tasks     map[string]*domain.Task
	order     []string
	capacity  int
	workspace *Workspace
	logs      *LogStore
	observers []func(domain.Task)
	now       func() time.Time
	mu        sync.RWMutex
}

func NewTaskService(workspace *Workspace, logs *LogStore, capacity int) *TaskService {
	if capacity <= 0 {
		capacity = DefaultTaskCapacity
	}
	return &TaskService{
		tasks:     make(map[string]*domain.Task),
		capacity:  capacity,
		workspace: workspace,
		logs:      logs,
		now:       time.Now,
	}
}

// OnTerminal registers fn to run after a task becomes completed, failed or cancelled.
func (s *TaskService) OnTerminal(fn func(domain.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// ==================== Lifecycle ====================

// StartTask creates a running task in the active workspace and returns its id.
func (s *TaskService) StartTask(name, module, command, target string) string {
	return s.StartTaskIn(s.workspace.Active(), name, module, command, target)
}

// StartTaskIn is StartTask for an explicit workspace.
func (s *TaskService) StartTaskIn(workspaceID, name, module, command, target string) string {
	s.mu.Lock()
	id := uuid.New().String()
	task := &domain.Task{
		ID:          id,
		Name:        name,
		Module:      module,
		Status:      domain.TaskStatusRunning,
		Progress:    0,
		StartTime:   s.now(),
		Command:     command,
		Target:      target,
		WorkspaceID: workspaceID,
	}
	s.tasks[id] = task
	s.order = append(s.order, id)
	s.evictLocked()
	snapshot := *task
	s.mu.Unlock()

	s.emit(snapshot, domain.LogLevelInfo, fmt.Sprintf("Iniciando tarea: %s", name), "")
	if target != "" {
		s.emit(snapshot, domain.LogLevelInfo, fmt.Sprintf("Objetivo: %s", target), "")
	}
	if command != "" {
		s.emit(snapshot, domain.LogLevelCommand, command, command)
	}
	return id
}

// evictLocked drops the oldest finished task, or the oldest task outright, while over capacity.
func (s *TaskService) evictLocked() {
	for len(s.order) > s.capacity {
		victim := 0
		for i, id := range s.order {
			if s.tasks[id].Status.IsTerminal() {
				victim = i
				break
			}
		}
		delete(s.tasks, s.order[victim])
		s.order = append(s.order[:victim], s.order[victim+1:]...)
	}
}

// UpdateTask shallow-merges patch into the task. A session id, once set, is kept.
func (s *TaskService) UpdateTask(id string, patch domain.TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.mutableLocked(id)
	if err != nil {
		return err
	}
	if patch.Name != nil {
		task.Name = *patch.Name
	}
	if patch.Command != nil {
		task.Command = *patch.Command
	}
	if patch.Target != nil {
		task.Target = *patch.Target
	}
	if patch.SessionID != nil && task.SessionID == "" {
		task.SessionID = *patch.SessionID
	}
	return nil
}

func (s *TaskService) UpdateTaskProgress(id string, progress int, message string) error {
	s.mu.Lock()
	task, err := s.mutableLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	task.Progress = clampProgress(progress)
	snapshot := *task
	s.mu.Unlock()

	if message != "" {
		s.emit(snapshot, domain.LogLevelInfo, message, "")
	}
	return nil
}

func (s *TaskService) CompleteTask(id, message string) error {
	snapshot, err := s.finish(id, domain.TaskStatusCompleted, func(t *domain.Task) {
		t.Progress = 100
	})
	if err != nil {
		return err
	}
	if message == "" {
		message = fmt.Sprintf("Tarea completada: %s", snapshot.Name)
	}
	s.emit(snapshot, domain.LogLevelSuccess, message, "")
	s.emit(snapshot, domain.LogLevelInfo, fmt.Sprintf("Duración: %.1fs", snapshot.Duration().Seconds()), "")
	s.notify(snapshot)
	return nil
}

func (s *TaskService) FailTask(id, errMsg string) error {
	snapshot, err := s.finish(id, domain.TaskStatusFailed, nil)
	if err != nil {
		return err
	}
	s.emit(snapshot, domain.LogLevelError, fmt.Sprintf("Error: %s", errMsg), "")
	s.notify(snapshot)
	return nil
}

func (s *TaskService) CancelTask(id string) error {
	snapshot, err := s.finish(id, domain.TaskStatusCancelled, nil)
	if err != nil {
		return err
	}
	s.emit(snapshot, domain.LogLevelWarning, fmt.Sprintf("Tarea cancelada: %s", snapshot.Name), "")
	s.notify(snapshot)
	return nil
}

func (s *TaskService) KillTask(id string) error {
	snapshot, err := s.finish(id, domain.TaskStatusCancelled, nil)
	if err != nil {
		return err
	}
	s.emit(snapshot, domain.LogLevelError, fmt.Sprintf("Tarea terminada forzosamente: %s", snapshot.Name), "")
	s.notify(snapshot)
	return nil
}

// MarkCancelling toggles the transient flag shown while a backend cancel is pending.
func (s *TaskService) MarkCancelling(id string, cancelling bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.mutableLocked(id)
	if err != nil {
		return err
	}
	task.Cancelling = cancelling
	return nil
}

func (s *TaskService) finish(id string, status domain.TaskStatus, mutate func(*domain.Task)) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.mutableLocked(id)
	if err != nil {
		return domain.Task{}, err
	}
	end := s.now()
	task.Status = status
	task.EndTime = &end
	task.Cancelling = false
	if mutate != nil {
		mutate(task)
	}
	return *task, nil
}

func (s *TaskService) mutableLocked(id string) (*domain.Task, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if task.Status.IsTerminal() {
		return nil, ErrTaskTerminal
	}
	return task, nil
}

func (s *TaskService) notify(t domain.Task) {
	s.mu.RLock()
	observers := slices.Clone(s.observers)
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(t)
	}
}

func (s *TaskService) emit(t domain.Task, level domain.LogLevel, message, command string) {
	if s.logs == nil {
		return
	}
	s.logs.Append(domain.LogEntry{
		Level:       level,
		Module:      t.Module,
		Message:     message,
		Command:     command,
		TaskID:      t.ID,
		WorkspaceID: t.WorkspaceID,
		Source:      "console",
	})
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ==================== Queries ====================

func (s *TaskService) GetTask(id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, ErrTaskNotFound
	}

	taskCopy := *task
	return &taskCopy, nil
}

// FindBySession returns the task correlated to a backend scan id.
func (s *TaskService) FindBySession(sessionID string) (*domain.Task, bool) {
	if sessionID == "" {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if t := s.tasks[id]; t.SessionID == sessionID {
			taskCopy := *t
			return &taskCopy, true
		}
	}
	return nil, false
}

// Tasks returns copies of the tasks matching pred, newest first.
func (s *TaskService) Tasks(pred func(domain.Task) bool) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Task, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		t := *s.tasks[s.order[i]]
		if pred == nil || pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// ClearWorkspace removes finished tasks of a workspace. Running tasks stay.
func (s *TaskService) ClearWorkspace(workspaceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	removed := 0
	for _, id := range s.order {
		t := s.tasks[id]
		if t.WorkspaceID == workspaceID && t.Status.IsTerminal() {
			delete(s.tasks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed
}
