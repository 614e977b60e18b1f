package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ==================== ENUMS ====================

type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelSuccess LogLevel = "success"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
	LogLevelCommand LogLevel = "command"
)

// ==================== JSONB TYPES ====================

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan JSONB: invalid type")
	}
	return json.Unmarshal(bytes, j)
}

// ==================== ENTITIES ====================

// Task is one user-visible unit of asynchronous backend work.
type Task struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Module      string     `json:"module"`
	Status      TaskStatus `json:"status"`
	Progress    int        `json:"progress"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Command     string     `json:"command,omitempty"`
	Target      string     `json:"target,omitempty"`
	SessionID   string     `json:"session_id,omitempty"`
	WorkspaceID string     `json:"workspace_id"`

	// Cancelling is set while a backend cancellation is in flight.
	Cancelling bool `json:"cancelling,omitempty"`
}

// Duration returns the elapsed run time, up to now for running tasks.
func (t Task) Duration() time.Duration {
	if t.EndTime != nil {
		return t.EndTime.Sub(t.StartTime)
	}
	return time.Since(t.StartTime)
}

// TaskPatch carries the fields UpdateTask may merge. Nil fields are left untouched.
type TaskPatch struct {
	Name      *string
	Command   *string
	Target    *string
	SessionID *string
}

// LogEntry is an immutable console record.
type LogEntry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Level       LogLevel  `json:"level"`
	Module      string    `json:"module"`
	Message     string    `json:"message"`
	Command     string    `json:"command,omitempty"`
	TaskID      string    `json:"task_id,omitempty"`
	WorkspaceID string    `json:"workspace_id"`
	Source      string    `json:"source,omitempty"`
}

// CommandPreview is the dry-run description returned by a tool preview endpoint.
type CommandPreview struct {
	Command          []string               `json:"command"`
	CommandString    string                 `json:"command_string"`
	Parameters       map[string]interface{} `json:"parameters"`
	EstimatedTimeout int                    `json:"estimated_timeout"`
	OutputFile       string                 `json:"output_file"`
	Warnings         []string               `json:"warnings,omitempty"`
	Suggestions      []string               `json:"suggestions,omitempty"`
}

// Tool describes one scanning tool the backend can run.
type Tool struct {
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Module      string `yaml:"module" json:"module"`
	PreviewPath string `yaml:"preview_path" json:"preview_path"`
	StartPath   string `yaml:"start_path" json:"start_path"`
	TargetParam string `yaml:"target_param" json:"target_param"`
}

// ==================== JOURNAL ====================

// TaskRecord is the persisted copy of a task that reached a terminal state.
type TaskRecord struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	TaskID      string     `gorm:"size:64;uniqueIndex;not null" json:"task_id"`
	Name        string     `gorm:"size:255;not null" json:"name"`
	Module      string     `gorm:"size:100;index" json:"module"`
	Status      TaskStatus `gorm:"size:20;not null;index" json:"status"`
	Progress    int        `json:"progress"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Command     string     `gorm:"type:text" json:"command,omitempty"`
	Target      string     `gorm:"size:255" json:"target,omitempty"`
	SessionID   string     `gorm:"size:64;index" json:"session_id,omitempty"`
	WorkspaceID string     `gorm:"size:64;not null;index" json:"workspace_id"`
	Meta        JSONB      `gorm:"type:json" json:"meta,omitempty"`
}

func (TaskRecord) TableName() string {
	return "task_records"
}

// NewTaskRecord snapshots a task for the journal.
func NewTaskRecord(t Task) *TaskRecord {
	return &TaskRecord{
		TaskID:      t.ID,
		Name:        t.Name,
		Module:      t.Module,
		Status:      t.Status,
		Progress:    t.Progress,
		StartTime:   t.StartTime,
		EndTime:     t.EndTime,
		Command:     t.Command,
		Target:      t.Target,
		SessionID:   t.SessionID,
		WorkspaceID: t.WorkspaceID,
		Meta:        JSONB{"duration_seconds": int(t.Duration().Seconds())},
	}
}
