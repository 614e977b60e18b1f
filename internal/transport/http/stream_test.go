package http

import (
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/scanops/console/internal/domain"
	"github.com/scanops/console/internal/transport/http/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_SnapshotThenLiveEntries(t *testing.T) {
	ta := newTestApp(t)
	ta.console.Logs.Append(domain.LogEntry{Message: "before", WorkspaceID: "ws-a"})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go ta.app.Listener(ln)
	t.Cleanup(func() { ta.app.Shutdown() })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/console", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var frame handlers.StreamFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "snapshot", frame.Type)
	require.Len(t, frame.Logs, 1)
	assert.Equal(t, "before", frame.Logs[0].Message)

	ta.console.Logs.Append(domain.LogEntry{Message: "other workspace", WorkspaceID: "ws-b"})
	ta.console.Logs.Append(domain.LogEntry{Message: "live", WorkspaceID: "ws-a"})

	frame = handlers.StreamFrame{}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "log", frame.Type)
	require.NotNil(t, frame.Entry)
	assert.Equal(t, "live", frame.Entry.Message)
}
