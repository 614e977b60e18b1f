package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scanops/console/internal/domain"
	"github.com/scanops/console/internal/infrastructure/logger"
)

const DefaultLogCapacity = 1000

// LogFilter selects entries for a view. Zero fields match everything.
type LogFilter struct {
	Levels []domain.LogLevel
	Source string
	TaskID string
}

func (f LogFilter) Match(e domain.LogEntry) bool {
	if len(f.Levels) > 0 {
		found := false
		for _, l := range f.Levels {
			if l == e.Level {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Source != "" && f.Source != e.Source {
		return false
	}
	if f.TaskID != "" && f.TaskID != e.TaskID {
		return false
	}
	return true
}

// LogStore is an append-only, capacity-bounded sequence of console entries.
// Entries are kept oldest first; capacity is shared by all workspaces.
type LogStore struct {
	mu          sync.RWMutex
	entries     []domain.LogEntry
	head        int
	capacity    int
	log         *logger.Logger
	subscribers map[chan domain.LogEntry]struct{}
	now         func() time.Time
}

func NewLogStore(capacity int, log *logger.Logger) *LogStore {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &LogStore{
		entries:     make([]domain.LogEntry, 0, capacity),
		capacity:    capacity,
		log:         log,
		subscribers: make(map[chan domain.LogEntry]struct{}),
		now:         time.Now,
	}
}

// Append stores entry, filling in id and timestamp when missing, and evicts
// the oldest entries beyond capacity.
func (s *LogStore) Append(entry domain.LogEntry) domain.LogEntry {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if entry.Level == "" {
		entry.Level = domain.LogLevelInfo
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	if len(s.entries)-s.head > s.capacity {
		s.head = len(s.entries) - s.capacity
	}
	// compact once the dead prefix is as large as the live window
	if s.head >= s.capacity {
		live := make([]domain.LogEntry, len(s.entries)-s.head, s.capacity*2)
		copy(live, s.entries[s.head:])
		s.entries = live
		s.head = 0
	}
	for ch := range s.subscribers {
		select {
		case ch <- entry:
		default:
		}
	}
	s.mu.Unlock()

	s.trace(entry)
	return entry
}

func (s *LogStore) trace(e domain.LogEntry) {
	fields := []interface{}{
		"log_level", e.Level,
		"module", e.Module,
		"task_id", e.TaskID,
		"workspace_id", e.WorkspaceID,
	}
	switch e.Level {
	case domain.LogLevelError:
		s.log.Errorw(e.Message, fields...)
	case domain.LogLevelWarning:
		s.log.Warnw(e.Message, fields...)
	default:
		s.log.Debugw(e.Message, fields...)
	}
}

// Filter returns a copy of the entries matching pred, oldest first.
func (s *LogStore) Filter(pred func(domain.LogEntry) bool) []domain.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LogEntry, 0)
	for _, e := range s.entries[s.head:] {
		if pred == nil || pred(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *LogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries) - s.head
}

// ClearWorkspace removes every entry belonging to workspaceID and reports how many were dropped.
func (s *LogStore) ClearWorkspace(workspaceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]domain.LogEntry, 0, s.capacity)
	removed := 0
	for _, e := range s.entries[s.head:] {
		if e.WorkspaceID == workspaceID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	s.head = 0
	return removed
}

// Subscribe returns a channel receiving every appended entry. Slow readers miss entries.
func (s *LogStore) Subscribe(buffer int) chan domain.LogEntry {
	ch := make(chan domain.LogEntry, buffer)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// SubscribeWithSnapshot registers a subscriber and copies the entries matching
// pred in one step. Every entry ends up either in the snapshot or on the channel, never both.
func (s *LogStore) SubscribeWithSnapshot(buffer int, pred func(domain.LogEntry) bool) ([]domain.LogEntry, chan domain.LogEntry) {
	ch := make(chan domain.LogEntry, buffer)
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]domain.LogEntry, 0)
	for _, e := range s.entries[s.head:] {
		if pred == nil || pred(e) {
			snapshot = append(snapshot, e)
		}
	}
	s.subscribers[ch] = struct{}{}
	return snapshot, ch
}

func (s *LogStore) Unsubscribe(ch chan domain.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}
