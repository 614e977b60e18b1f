package services

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/scanops/console/internal/domain"
)

// Upstream event names on the push channel.
const (
	EventBackendLog = "backend_log"
	EventWorkerLog  = "worker_log"
	EventToolLog    = "tool_log"
)

const defaultToolSource = "tool"

// NormalizeEvent maps one upstream push event to a console entry. Unknown event
// kinds are treated like tool output.
func NormalizeEvent(kind string, ev domain.PushEvent, now time.Time) domain.LogEntry {
	source := strings.TrimSpace(ev.Source)
	var module string

	switch kind {
	case EventBackendLog:
		if source == "" {
			source = "backend"
		}
		module = "Backend"
	case EventWorkerLog:
		if source == "" {
			source = "worker"
		}
		module = "Worker"
	case EventToolLog:
		if source == "" {
			source = defaultToolSource
		}
		module = strings.ToUpper(source)
	default:
		if source == "" {
			source = defaultToolSource
		}
		module = strings.ToUpper(source)
	}

	level := MapLevel(ev.Level)
	if ev.Command != "" && level == domain.LogLevelInfo {
		level = domain.LogLevelCommand
	}

	return domain.LogEntry{
		Timestamp:   ParseTimestamp(ev.Timestamp, now),
		Level:       level,
		Module:      module,
		Message:     ev.Message,
		Command:     ev.Command,
		TaskID:      ev.TaskID,
		WorkspaceID: ev.WorkspaceID,
		Source:      source,
	}
}

// NormalizeHistorical converts one backend log row to a console entry.
func NormalizeHistorical(row domain.HistoricalLog, now time.Time) domain.LogEntry {
	source := strings.TrimSpace(row.Source)
	if source == "" {
		source = defaultToolSource
	}
	entry := domain.LogEntry{
		Timestamp:   ParseTimestamp(row.Timestamp, now),
		Level:       MapLevel(row.Level),
		Module:      strings.ToUpper(source),
		Message:     row.Message,
		TaskID:      row.TaskID,
		WorkspaceID: row.WorkspaceID,
		Source:      source,
	}
	if cmd, ok := row.Metadata["command"].(string); ok && cmd != "" {
		entry.Command = cmd
	}
	return entry
}

// MapLevel folds upstream level names onto console levels. Empty means INFO.
func MapLevel(level string) domain.LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "", "INFO", "DEBUG", "TRACE":
		return domain.LogLevelInfo
	case "SUCCESS", "OK":
		return domain.LogLevelSuccess
	case "WARNING", "WARN":
		return domain.LogLevelWarning
	case "ERROR", "CRITICAL", "FATAL":
		return domain.LogLevelError
	case "COMMAND", "CMD":
		return domain.LogLevelCommand
	default:
		return domain.LogLevelInfo
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts epoch seconds, epoch milliseconds or an ISO-8601 string.
// Anything unparseable yields now.
func ParseTimestamp(v interface{}, now time.Time) time.Time {
	switch t := v.(type) {
	case nil:
		return now
	case float64:
		return fromEpoch(t, now)
	case int64:
		return fromEpoch(float64(t), now)
	case int:
		return fromEpoch(float64(t), now)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return now
		}
		return fromEpoch(f, now)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return now
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(f, now)
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed
			}
		}
		return now
	default:
		return now
	}
}

func fromEpoch(f float64, now time.Time) time.Time {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return now
	}
	// epoch milliseconds
	if f > 1e12 {
		return time.UnixMilli(int64(f))
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}
