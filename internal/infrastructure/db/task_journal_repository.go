package db

import (
	"context"
	"errors"

	"github.com/scanops/console/internal/core/ports"
	"github.com/scanops/console/internal/domain"
	"github.com/scanops/console/internal/infrastructure/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type taskJournalRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskJournalRepository(db *gorm.DB, log *logger.Logger) ports.TaskJournalRepository {
	return &taskJournalRepository{
		db:  db,
		log: log,
	}
}

// Save inserts the record, or overwrites the stored copy of the same task.
func (r *taskJournalRepository) Save(ctx context.Context, record *domain.TaskRecord) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "task_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "module", "status", "progress", "end_time",
			"command", "target", "session_id", "meta", "updated_at",
		}),
	}).Create(record).Error
	if err != nil {
		r.log.Errorw("task_journal_save_failed", "task_id", record.TaskID, "status", record.Status, "error", err)
		return err
	}
	r.log.Infow("task_journal_save_ok", "task_id", record.TaskID, "status", record.Status, "workspace_id", record.WorkspaceID)
	return nil
}

func (r *taskJournalRepository) GetByTaskID(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	var record domain.TaskRecord
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		r.log.Warnw("task_journal_get_failed", "task_id", taskID, "error", err)
		return nil, err
	}
	return &record, nil
}

// List returns the newest records, optionally limited to one workspace.
func (r *taskJournalRepository) List(ctx context.Context, workspaceID string, limit int) ([]domain.TaskRecord, error) {
	var records []domain.TaskRecord
	q := r.db.WithContext(ctx).Order("created_at desc").Order("id desc")
	if workspaceID != "" {
		q = q.Where("workspace_id = ?", workspaceID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		r.log.Errorw("task_journal_list_failed", "workspace_id", workspaceID, "error", err)
		return nil, err
	}
	r.log.Debugw("task_journal_list_ok", "workspace_id", workspaceID, "count", len(records))
	return records, nil
}
