package services

import (
	"context"
	"time"

	"github.com/scanops/console/internal/core/ports"
	"github.com/scanops/console/internal/domain"
	"github.com/scanops/console/internal/infrastructure/logger"
)

const journalQueueSize = 64

// Journal persists every task that reaches a terminal status. Writes happen on
// a background worker so task transitions never wait on the database.
type Journal struct {
	repo  ports.TaskJournalRepository
	log   *logger.Logger
	queue chan domain.Task
}

func NewJournal(repo ports.TaskJournalRepository, tasks *TaskService, log *logger.Logger) *Journal {
	if log == nil {
		log = logger.NewNop()
	}
	j := &Journal{
		repo:  repo,
		log:   log,
		queue: make(chan domain.Task, journalQueueSize),
	}
	tasks.OnTerminal(j.enqueue)
	return j
}

func (j *Journal) enqueue(t domain.Task) {
	select {
	case j.queue <- t:
	default:
		j.log.Warnw("task_journal_queue_full", "task_id", t.ID, "status", t.Status)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case t := <-j.queue:
			j.save(ctx, t)
		case <-ctx.Done():
			for {
				select {
				case t := <-j.queue:
					j.save(context.Background(), t)
				default:
					return nil
				}
			}
		}
	}
}

func (j *Journal) save(ctx context.Context, t domain.Task) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := j.repo.Save(ctx, domain.NewTaskRecord(t)); err != nil {
		j.log.Warnw("task_journal_write_failed", "task_id", t.ID, "error", err)
	}
}

// Recent lists journaled tasks of a workspace, newest first.
func (j *Journal) Recent(ctx context.Context, workspaceID string, limit int) ([]domain.TaskRecord, error) {
	return j.repo.List(ctx, workspaceID, limit)
}

// Get returns the journaled record of taskID if it belongs to workspaceID.
func (j *Journal) Get(ctx context.Context, workspaceID, taskID string) (*domain.TaskRecord, error) {
	record, err := j.repo.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if record.WorkspaceID != workspaceID {
		return nil, domain.ErrRecordNotFound
	}
	return record, nil
}
