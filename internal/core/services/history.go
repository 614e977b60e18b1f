package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/scanops/console/internal/core/ports"
	"github.com/scanops/console/internal/domain"
	"github.com/scanops/console/internal/infrastructure/logger"
)

const (
	DefaultHistoryLimit    = 500
	DefaultHistoryPageSize = 100

	LiveSeparatorMessage = "──── Logs en vivo ────"
)

type HistoryLoaderConfig struct {
	Backend  ports.Backend
	Logs     *LogStore
	Tasks    *TaskService
	Logger   *logger.Logger
	Limit    int
	PageSize int
}

// HistoryLoader backfills a workspace's console with the backend's stored logs
// before live events start flowing.
type HistoryLoader struct {
	backend  ports.Backend
	logs     *LogStore
	tasks    *TaskService
	log      *logger.Logger
	limit    int
	pageSize int
	now      func() time.Time

	mu     sync.Mutex
	loaded map[string]bool
}

func NewHistoryLoader(cfg HistoryLoaderConfig) *HistoryLoader {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > limit {
		pageSize = min(DefaultHistoryPageSize, limit)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &HistoryLoader{
		backend:  cfg.Backend,
		logs:     cfg.Logs,
		tasks:    cfg.Tasks,
		log:      log,
		limit:    limit,
		pageSize: pageSize,
		now:      time.Now,
		loaded:   make(map[string]bool),
	}
}

// Loaded reports whether workspaceID was already backfilled.
func (h *HistoryLoader) Loaded(workspaceID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded[workspaceID]
}

// Forget lets the next Load for workspaceID fetch again.
func (h *HistoryLoader) Forget(workspaceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.loaded, workspaceID)
}

// Load appends up to the configured limit of historical rows, oldest first,
// followed by a single separator entry. A workspace is loaded at most once.
func (h *HistoryLoader) Load(ctx context.Context, workspaceID string) (int, error) {
	h.mu.Lock()
	if h.loaded[workspaceID] {
		h.mu.Unlock()
		return 0, nil
	}
	h.loaded[workspaceID] = true
	h.mu.Unlock()

	rows, err := h.fetch(ctx, workspaceID)
	if err != nil && len(rows) == 0 {
		h.Forget(workspaceID)
		h.log.Warnw("history_load_failed", "workspace_id", workspaceID, "error", err)
		h.logs.Append(domain.LogEntry{
			Level:       domain.LogLevelWarning,
			Module:      "Console",
			Message:     fmt.Sprintf("No se pudo cargar el historial de logs: %v", err),
			WorkspaceID: workspaceID,
			Source:      "console",
		})
		return 0, err
	}
	if err != nil {
		h.log.Warnw("history_load_partial", "workspace_id", workspaceID, "rows", len(rows), "error", err)
	}

	now := h.now()
	entries := make([]domain.LogEntry, 0, len(rows))
	for _, row := range rows {
		entry := NormalizeHistorical(row, now)
		if entry.WorkspaceID == "" {
			entry.WorkspaceID = workspaceID
		}
		if entry.WorkspaceID != workspaceID {
			continue
		}
		entry.TaskID = h.resolveTaskID(entry.TaskID)
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	for _, e := range entries {
		h.logs.Append(e)
	}
	h.logs.Append(domain.LogEntry{
		Timestamp:   h.now(),
		Level:       domain.LogLevelInfo,
		Module:      "Console",
		Message:     LiveSeparatorMessage,
		WorkspaceID: workspaceID,
		Source:      "console",
	})

	h.log.Infow("history_load_ok", "workspace_id", workspaceID, "rows", len(entries))
	return len(entries), nil
}

func (h *HistoryLoader) fetch(ctx context.Context, workspaceID string) ([]domain.HistoricalLog, error) {
	var rows []domain.HistoricalLog
	for page := 1; len(rows) < h.limit; page++ {
		resp, err := h.backend.Logs(ctx, workspaceID, page, h.pageSize)
		if err != nil {
			return rows, err
		}
		rows = append(rows, resp.Logs...)
		if len(resp.Logs) < h.pageSize || (resp.Total > 0 && len(rows) >= resp.Total) {
			break
		}
	}
	if len(rows) > h.limit {
		rows = rows[:h.limit]
	}
	return rows, nil
}

// resolveTaskID maps a backend scan id to the local task correlated with it.
func (h *HistoryLoader) resolveTaskID(raw string) string {
	if raw == "" || h.tasks == nil {
		return raw
	}
	if t, ok := h.tasks.FindBySession(raw); ok {
		return t.ID
	}
	return raw
}
