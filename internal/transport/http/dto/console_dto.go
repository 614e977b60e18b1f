package dto

import (
	"strings"
	"time"

	"github.com/scanops/console/internal/domain"
)

type SwitchWorkspaceRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

func (r *SwitchWorkspaceRequest) Validate() []string {
	var errors []string
	if strings.TrimSpace(r.WorkspaceID) == "" {
		errors = append(errors, "workspace_id is required")
	}
	return errors
}

type OpenPreviewRequest struct {
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters"`
}

func (r *OpenPreviewRequest) Validate() []string {
	var errors []string
	if strings.TrimSpace(r.Tool) == "" {
		errors = append(errors, "tool is required")
	}
	if r.Parameters == nil {
		r.Parameters = map[string]interface{}{}
	}
	return errors
}

type EditPreviewRequest struct {
	Parameters map[string]interface{} `json:"parameters"`
}

func (r *EditPreviewRequest) Validate() []string {
	var errors []string
	if len(r.Parameters) == 0 {
		errors = append(errors, "parameters must not be empty")
	}
	return errors
}

type TaskResponse struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Module          string            `json:"module"`
	Status          domain.TaskStatus `json:"status"`
	Progress        int               `json:"progress"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         *time.Time        `json:"end_time,omitempty"`
	DurationSeconds float64           `json:"duration_seconds"`
	Command         string            `json:"command,omitempty"`
	Target          string            `json:"target,omitempty"`
	SessionID       string            `json:"session_id,omitempty"`
	WorkspaceID     string            `json:"workspace_id"`
	Cancelling      bool              `json:"cancelling"`
}

func ToTaskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:              t.ID,
		Name:            t.Name,
		Module:          t.Module,
		Status:          t.Status,
		Progress:        t.Progress,
		StartTime:       t.StartTime,
		EndTime:         t.EndTime,
		DurationSeconds: t.Duration().Seconds(),
		Command:         t.Command,
		Target:          t.Target,
		SessionID:       t.SessionID,
		WorkspaceID:     t.WorkspaceID,
		Cancelling:      t.Cancelling,
	}
}

func ToTaskResponses(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, ToTaskResponse(t))
	}
	return out
}

type PreviewResponse struct {
	ID          string                 `json:"id"`
	Tool        string                 `json:"tool"`
	WorkspaceID string                 `json:"workspace_id"`
	Preview     domain.CommandPreview  `json:"preview"`
	Parameters  map[string]interface{} `json:"parameters"`
	Editing     bool                   `json:"editing"`
}

type ExecuteResponse struct {
	TaskID string `json:"task_id"`
}

// ParseLevels splits a comma separated level list, ignoring unknown names.
func ParseLevels(raw string) []domain.LogLevel {
	if raw == "" {
		return nil
	}
	var levels []domain.LogLevel
	for _, part := range strings.Split(raw, ",") {
		switch l := domain.LogLevel(strings.ToLower(strings.TrimSpace(part))); l {
		case domain.LogLevelInfo, domain.LogLevelSuccess, domain.LogLevelWarning, domain.LogLevelError, domain.LogLevelCommand:
			levels = append(levels, l)
		}
	}
	return levels
}
