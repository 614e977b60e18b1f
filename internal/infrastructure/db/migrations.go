package db

import (
	"github.com/scanops/console/internal/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.TaskRecord{}); err != nil {
		return err
	}

	// Journal listing is always per workspace, newest first
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_task_records_workspace_created
		ON task_records (workspace_id, created_at)
	`).Error
}
