package ports

import (
	"context"

	"github.com/scanops/console/internal/domain"
)

type TaskJournalRepository interface {
	Save(ctx context.Context, record *domain.TaskRecord) error
	GetByTaskID(ctx context.Context, taskID string) (*domain.TaskRecord, error)
	List(ctx context.Context, workspaceID string, limit int) ([]domain.TaskRecord, error)
}
