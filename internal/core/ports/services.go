package ports

import (
	"context"

	"github.com/scanops/console/internal/domain"
)

// Backend is the remote scanning backend as seen by the console.
type Backend interface {
	ScanStatus(ctx context.Context, scanID string) (*domain.ScanStatus, error)
	RunningScans(ctx context.Context, workspaceID string) (*domain.RunningScans, error)
	CancelScan(ctx context.Context, scanID string) (*domain.CancelResult, error)
	CancelAll(ctx context.Context, workspaceID string) (*domain.CancelAllResult, error)
	Logs(ctx context.Context, workspaceID string, page, limit int) (*domain.LogPage, error)
	Preview(ctx context.Context, tool domain.Tool, params map[string]interface{}) (*domain.CommandPreview, error)
	Execute(ctx context.Context, tool domain.Tool, params map[string]interface{}) (*domain.ExecuteResponse, error)
}

// ToolCatalog resolves tool names to their backend endpoints.
type ToolCatalog interface {
	Lookup(name string) (domain.Tool, bool)
	List() []domain.Tool
}

// WorkspaceListener is notified when the active workspace changes.
type WorkspaceListener interface {
	WorkspaceChanged(previous, current string)
}
