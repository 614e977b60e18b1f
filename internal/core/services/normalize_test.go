package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/scanops/console/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapLevel(t *testing.T) {
	tests := map[string]domain.LogLevel{
		"":         domain.LogLevelInfo,
		"info":     domain.LogLevelInfo,
		"DEBUG":    domain.LogLevelInfo,
		"success":  domain.LogLevelSuccess,
		"WARN":     domain.LogLevelWarning,
		"warning":  domain.LogLevelWarning,
		"ERROR":    domain.LogLevelError,
		"critical": domain.LogLevelError,
		"command":  domain.LogLevelCommand,
		"verbose":  domain.LogLevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, MapLevel(in), "level %q", in)
	}
}

func TestParseTimestamp(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("epoch seconds", func(t *testing.T) {
		assert.True(t, want.Equal(ParseTimestamp(float64(want.Unix()), now)))
	})
	t.Run("epoch milliseconds", func(t *testing.T) {
		assert.True(t, want.Equal(ParseTimestamp(float64(want.UnixMilli()), now)))
	})
	t.Run("json number", func(t *testing.T) {
		assert.True(t, want.Equal(ParseTimestamp(json.Number("1714557600"), now)))
	})
	t.Run("numeric string", func(t *testing.T) {
		assert.True(t, want.Equal(ParseTimestamp("1714557600", now)))
	})
	t.Run("rfc3339", func(t *testing.T) {
		assert.True(t, want.Equal(ParseTimestamp("2024-05-01T10:00:00Z", now)))
	})
	t.Run("naive iso", func(t *testing.T) {
		assert.True(t, want.Equal(ParseTimestamp("2024-05-01T10:00:00.000000", now)))
	})
	t.Run("garbage falls back to now", func(t *testing.T) {
		assert.Equal(t, now, ParseTimestamp("yesterday", now))
		assert.Equal(t, now, ParseTimestamp(nil, now))
		assert.Equal(t, now, ParseTimestamp(true, now))
	})
}

func TestNormalizeEvent(t *testing.T) {
	now := time.Now()

	t.Run("backend log", func(t *testing.T) {
		e := NormalizeEvent(EventBackendLog, domain.PushEvent{Message: "up", Level: "INFO"}, now)
		assert.Equal(t, "backend", e.Source)
		assert.Equal(t, "Backend", e.Module)
		assert.Equal(t, domain.LogLevelInfo, e.Level)
		assert.Equal(t, now, e.Timestamp)
	})

	t.Run("worker log", func(t *testing.T) {
		e := NormalizeEvent(EventWorkerLog, domain.PushEvent{Message: "job", Level: "warning"}, now)
		assert.Equal(t, "worker", e.Source)
		assert.Equal(t, "Worker", e.Module)
		assert.Equal(t, domain.LogLevelWarning, e.Level)
	})

	t.Run("tool log with command", func(t *testing.T) {
		e := NormalizeEvent(EventToolLog, domain.PushEvent{
			Source:      "nmap",
			Message:     "nmap -sV x",
			Command:     "nmap -sV x",
			TaskID:      "scan-1",
			WorkspaceID: "ws",
		}, now)
		assert.Equal(t, "NMAP", e.Module)
		assert.Equal(t, domain.LogLevelCommand, e.Level)
		assert.Equal(t, "scan-1", e.TaskID)
		assert.Equal(t, "ws", e.WorkspaceID)
	})

	t.Run("unknown kind is tool output", func(t *testing.T) {
		e := NormalizeEvent("scan_output", domain.PushEvent{Message: "open 22/tcp"}, now)
		assert.Equal(t, "tool", e.Source)
		assert.Equal(t, "TOOL", e.Module)
	})
}

func TestNormalizeHistorical(t *testing.T) {
	row := domain.HistoricalLog{
		Source:      "subfinder",
		Level:       "SUCCESS",
		Message:     "found 12",
		Timestamp:   "2024-05-01T10:00:00Z",
		WorkspaceID: "ws",
		Metadata:    domain.JSONB{"command": "subfinder -d example.com"},
	}

	e := NormalizeHistorical(row, time.Now())

	assert.Equal(t, "SUBFINDER", e.Module)
	assert.Equal(t, domain.LogLevelSuccess, e.Level)
	assert.Equal(t, "subfinder -d example.com", e.Command)
	assert.Equal(t, "ws", e.WorkspaceID)
}
