package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/scanops/console/internal/config"
	"github.com/scanops/console/internal/core/ports"
	"github.com/scanops/console/internal/domain"
	"github.com/scanops/console/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewConnection(config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "journal.db"),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db))
	t.Cleanup(func() { Close(db) })
	return db
}

func newRepo(t *testing.T) ports.TaskJournalRepository {
	return NewTaskJournalRepository(setupTestDB(t), logger.NewNop())
}

func record(taskID, workspaceID string, status domain.TaskStatus) *domain.TaskRecord {
	start := time.Now().Add(-time.Minute)
	end := time.Now()
	return domain.NewTaskRecord(domain.Task{
		ID:          taskID,
		Name:        "Nmap",
		Module:      "NMAP",
		Status:      status,
		Progress:    100,
		StartTime:   start,
		EndTime:     &end,
		SessionID:   "scan-" + taskID,
		WorkspaceID: workspaceID,
	})
}

func TestConnection_UnsupportedDriver(t *testing.T) {
	_, err := NewConnection(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestTaskJournal_SaveAndGet(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, record("t1", "ws", domain.TaskStatusCompleted)))

	got, err := repo.GetByTaskID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, "scan-t1", got.SessionID)
	require.NotNil(t, got.EndTime)
	assert.EqualValues(t, 60, got.Meta["duration_seconds"])

	_, err = repo.GetByTaskID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestTaskJournal_SaveUpserts(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, record("t1", "ws", domain.TaskStatusCancelled)))
	require.NoError(t, repo.Save(ctx, record("t1", "ws", domain.TaskStatusFailed)))

	all, err := repo.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.TaskStatusFailed, all[0].Status)
}

func TestTaskJournal_ListNewestFirstPerWorkspace(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Save(ctx, record(id, "ws", domain.TaskStatusCompleted)))
	}
	require.NoError(t, repo.Save(ctx, record("x", "other", domain.TaskStatusCompleted)))

	got, err := repo.List(ctx, "ws", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].TaskID)
	assert.Equal(t, "b", got[1].TaskID)

	all, err := repo.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
