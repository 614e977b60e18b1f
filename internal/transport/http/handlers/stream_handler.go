package handlers

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/scanops/console/internal/core/services"
	"github.com/scanops/console/internal/domain"
	"github.com/scanops/console/internal/infrastructure/logger"
)

const (
	streamBuffer    = 256
	streamWriteWait = 10 * time.Second
)

// StreamFrame is one message sent to a UI stream client.
type StreamFrame struct {
	Type  string            `json:"type"`
	Entry *domain.LogEntry  `json:"entry,omitempty"`
	Logs  []domain.LogEntry `json:"logs,omitempty"`
}

// StreamHandler pushes the console log of the active workspace to UI clients:
// a snapshot first, then every new entry.
type StreamHandler struct {
	console *services.Console
	logger  *logger.Logger
}

func NewStreamHandler(console *services.Console, logger *logger.Logger) *StreamHandler {
	return &StreamHandler{console: console, logger: logger}
}

func (h *StreamHandler) Handle(c *websocket.Conn) {
	active := h.console.Workspace.Active()
	snapshot, ch := h.console.Logs.SubscribeWithSnapshot(streamBuffer, func(e domain.LogEntry) bool {
		return e.WorkspaceID == active
	})
	defer h.console.Logs.Unsubscribe(ch)

	h.logger.Infow("console_stream_open", "remote", c.RemoteAddr().String(), "workspace_id", active)
	c.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := c.WriteJSON(StreamFrame{Type: "snapshot", Logs: snapshot}); err != nil {
		h.logger.Warnw("console_stream_snapshot_failed", "error", err)
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			h.logger.Infow("console_stream_closed")
			return
		case entry, ok := <-ch:
			if !ok {
				return
			}
			if entry.WorkspaceID != h.console.Workspace.Active() {
				continue
			}
			c.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.WriteJSON(StreamFrame{Type: "log", Entry: &entry}); err != nil {
				h.logger.Warnw("console_stream_write_failed", "error", err)
				return
			}
		}
	}
}
