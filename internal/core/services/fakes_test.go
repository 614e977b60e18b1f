package services

import (
	"context"
	"errors"
	"sync"

	"github.com/scanops/console/internal/domain"
)

var errBackendDown = errors.New("backend unavailable")

type fakeBackend struct {
	mu sync.Mutex

	statuses   map[string]*domain.ScanStatus
	statusErr  error
	running    map[string][]domain.RunningScan
	runningErr error
	cancel     *domain.CancelResult
	cancelErr  error
	cancelAll  *domain.CancelAllResult
	logPages   map[int][]domain.HistoricalLog
	logsErrAt  int
	logsTotal  int
	preview    *domain.CommandPreview
	previewErr error
	execute    *domain.ExecuteResponse
	executeErr error

	statusCalls  int
	cancelCalls  []string
	logsCalls    []int
	executeCalls int
	executeArgs  []map[string]interface{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		statuses: make(map[string]*domain.ScanStatus),
		running:  make(map[string][]domain.RunningScan),
		logPages: make(map[int][]domain.HistoricalLog),
	}
}

func (f *fakeBackend) setStatus(id string, s domain.ScanStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = &s
}

func (f *fakeBackend) ScanStatus(ctx context.Context, scanID string) (*domain.ScanStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	s, ok := f.statuses[scanID]
	if !ok {
		return &domain.ScanStatus{ID: scanID, Status: domain.ScanStatusRunning}, nil
	}
	out := *s
	return &out, nil
}

func (f *fakeBackend) RunningScans(ctx context.Context, workspaceID string) (*domain.RunningScans, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runningErr != nil {
		return nil, f.runningErr
	}
	scans := append([]domain.RunningScan(nil), f.running[workspaceID]...)
	return &domain.RunningScans{Scans: scans, Total: len(scans)}, nil
}

func (f *fakeBackend) CancelScan(ctx context.Context, scanID string) (*domain.CancelResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, scanID)
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	if f.cancel != nil {
		return f.cancel, nil
	}
	return &domain.CancelResult{ScanID: scanID, ProcessTerminated: true}, nil
}

func (f *fakeBackend) CancelAll(ctx context.Context, workspaceID string) (*domain.CancelAllResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelAll == nil {
		return &domain.CancelAllResult{}, nil
	}
	return f.cancelAll, nil
}

func (f *fakeBackend) Logs(ctx context.Context, workspaceID string, page, limit int) (*domain.LogPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logsCalls = append(f.logsCalls, page)
	if f.logsErrAt > 0 && page >= f.logsErrAt {
		return nil, errBackendDown
	}
	return &domain.LogPage{Logs: f.logPages[page], Total: f.logsTotal, Page: page}, nil
}

func (f *fakeBackend) Preview(ctx context.Context, tool domain.Tool, params map[string]interface{}) (*domain.CommandPreview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.previewErr != nil {
		return nil, f.previewErr
	}
	if f.preview != nil {
		out := *f.preview
		out.Parameters = copyParams(params)
		return &out, nil
	}
	return &domain.CommandPreview{
		Command:       []string{tool.Name, "-sV"},
		CommandString: tool.Name + " -sV",
		Parameters:    copyParams(params),
	}, nil
}

func (f *fakeBackend) Execute(ctx context.Context, tool domain.Tool, params map[string]interface{}) (*domain.ExecuteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executeCalls++
	f.executeArgs = append(f.executeArgs, copyParams(params))
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	if f.execute != nil {
		return f.execute, nil
	}
	return &domain.ExecuteResponse{ScanID: "scan-1", Message: "Escaneo encolado"}, nil
}

type fakeCatalog map[string]domain.Tool

func (c fakeCatalog) Lookup(name string) (domain.Tool, bool) {
	t, ok := c[name]
	return t, ok
}

func (c fakeCatalog) List() []domain.Tool {
	out := make([]domain.Tool, 0, len(c))
	for _, t := range c {
		out = append(out, t)
	}
	return out
}

var testCatalog = fakeCatalog{
	"nmap": {
		Name:        "nmap",
		DisplayName: "Nmap",
		Module:      "NMAP",
		PreviewPath: "/api/v1/scans/nmap/preview",
		StartPath:   "/api/v1/scans/nmap/start",
		TargetParam: "target",
	},
}

// apiErr mimics the remote client's error carrying a user message.
type apiErr struct{ msg string }

func (e *apiErr) Error() string       { return "server returned status 400: " + e.msg }
func (e *apiErr) UserMessage() string { return e.msg }

type harness struct {
	ws      *Workspace
	logs    *LogStore
	tasks   *TaskService
	backend *fakeBackend
}

func newHarness(workspaceID string) *harness {
	ws := NewWorkspace(workspaceID)
	logs := NewLogStore(DefaultLogCapacity, nil)
	return &harness{
		ws:      ws,
		logs:    logs,
		tasks:   NewTaskService(ws, logs, DefaultTaskCapacity),
		backend: newFakeBackend(),
	}
}

func (h *harness) messages(workspaceID string) []string {
	var out []string
	for _, e := range h.logs.Filter(func(e domain.LogEntry) bool { return e.WorkspaceID == workspaceID }) {
		out = append(out, e.Message)
	}
	return out
}
