package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/scanops/console/internal/core/services"
	"github.com/scanops/console/internal/domain"
	"github.com/scanops/console/internal/infrastructure/logger"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024

	eventJoin  = "join_workspace"
	eventLeave = "leave_workspace"
)

// Envelope is the frame exchanged on the push channel in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type workspacePayload struct {
	WorkspaceID string `json:"workspace_id"`
}

// StatusListener is told when the channel goes up or down.
type StatusListener interface {
	SetPushConnected(connected bool)
}

type AdapterConfig struct {
	URL          string
	Token        string
	Logs         *services.LogStore
	Tasks        *services.TaskService
	Workspace    *services.Workspace
	Status       StatusListener
	Logger       *logger.Logger
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
	PingInterval time.Duration
	Dialer       *websocket.Dialer
}

// Adapter keeps a websocket subscription to the backend's live log channel for
// the active workspace and feeds every event straight into the log store.
type Adapter struct {
	url          string
	header       http.Header
	logs         *services.LogStore
	tasks        *services.TaskService
	workspace    *services.Workspace
	status       StatusListener
	log          *logger.Logger
	minBackoff   time.Duration
	maxBackoff   time.Duration
	pingInterval time.Duration
	dialer       *websocket.Dialer

	writeMu   sync.Mutex
	conn      *websocket.Conn
	joined    string
	connected atomic.Bool
	now       func() time.Time
}

func NewAdapter(cfg AdapterConfig) *Adapter {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	minBackoff := cfg.MinBackoff
	if minBackoff <= 0 {
		minBackoff = time.Second
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff < minBackoff {
		maxBackoff = 30 * time.Second
	}
	ping := cfg.PingInterval
	if ping <= 0 {
		ping = 25 * time.Second
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", fmt.Sprintf("Bearer %s", cfg.Token))
	}

	a := &Adapter{
		url:          cfg.URL,
		header:       header,
		logs:         cfg.Logs,
		tasks:        cfg.Tasks,
		workspace:    cfg.Workspace,
		status:       cfg.Status,
		log:          log,
		minBackoff:   minBackoff,
		maxBackoff:   maxBackoff,
		pingInterval: ping,
		dialer:       dialer,
		now:          time.Now,
	}
	cfg.Workspace.Subscribe(a)
	return a
}

func (a *Adapter) Connected() bool {
	return a.connected.Load()
}

// Run connects and reconnects until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) error {
	backoff := a.minBackoff
	for {
		connectedAt := time.Now()
		err := a.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(connectedAt) > a.maxBackoff {
			backoff = a.minBackoff
		}
		a.log.Warnw("push_disconnected", "url", a.url, "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > a.maxBackoff {
			backoff = a.maxBackoff
		}
	}
}

func (a *Adapter) session(ctx context.Context) error {
	conn, _, err := a.dialer.DialContext(ctx, a.url, a.header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	a.writeMu.Lock()
	a.conn = conn
	a.joined = ""
	a.writeMu.Unlock()

	a.setConnected(true)
	a.log.Infow("push_connected", "url", a.url)
	defer func() {
		a.writeMu.Lock()
		a.conn = nil
		a.joined = ""
		a.writeMu.Unlock()
		conn.Close()
		a.setConnected(false)
	}()

	if err := a.join(a.workspace.Active()); err != nil {
		return err
	}

	pongWait := a.pingInterval * 2
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go a.keepalive(ctx, conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		a.handleFrame(data)
	}
}

// keepalive pings the server and closes the connection when ctx ends.
func (a *Adapter) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(a.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			a.writeMu.Lock()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			a.writeMu.Unlock()
			conn.Close()
			return
		case <-ticker.C:
			a.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			a.writeMu.Unlock()
			if err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (a *Adapter) setConnected(v bool) {
	a.connected.Store(v)
	if a.status != nil {
		a.status.SetPushConnected(v)
	}
}

// WorkspaceChanged moves the subscription from the previous workspace channel to the new one.
func (a *Adapter) WorkspaceChanged(previous, current string) {
	if !a.Connected() {
		return
	}
	if err := a.leave(previous); err != nil {
		a.log.Warnw("push_leave_failed", "workspace_id", previous, "error", err)
	}
	if err := a.join(current); err != nil {
		a.log.Warnw("push_join_failed", "workspace_id", current, "error", err)
	}
}

func (a *Adapter) join(workspaceID string) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if err := a.sendLocked(eventJoin, workspaceID); err != nil {
		return err
	}
	a.joined = workspaceID
	a.log.Infow("push_join", "workspace_id", workspaceID)
	return nil
}

func (a *Adapter) leave(workspaceID string) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if a.joined != workspaceID {
		return nil
	}
	if err := a.sendLocked(eventLeave, workspaceID); err != nil {
		return err
	}
	a.joined = ""
	a.log.Infow("push_leave", "workspace_id", workspaceID)
	return nil
}

func (a *Adapter) sendLocked(event, workspaceID string) error {
	if a.conn == nil {
		return errors.New("push: not connected")
	}
	data, err := json.Marshal(workspacePayload{WorkspaceID: workspaceID})
	if err != nil {
		return err
	}
	a.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return a.conn.WriteJSON(Envelope{Event: event, Data: data})
}

func (a *Adapter) handleFrame(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		a.log.Debugw("push_frame_invalid", "error", err)
		return
	}
	var ev domain.PushEvent
	if len(env.Data) == 0 || json.Unmarshal(env.Data, &ev) != nil {
		a.log.Debugw("push_frame_ignored", "event", env.Event)
		return
	}

	switch env.Event {
	case services.EventBackendLog, services.EventWorkerLog, services.EventToolLog:
	default:
		if ev.Message == "" {
			a.log.Debugw("push_frame_ignored", "event", env.Event)
			return
		}
	}
	a.Deliver(env.Event, ev)
}

// Deliver normalizes one event and appends it, dropping events of other workspaces.
func (a *Adapter) Deliver(kind string, ev domain.PushEvent) bool {
	entry := services.NormalizeEvent(kind, ev, a.now())
	active := a.workspace.Active()
	if entry.WorkspaceID == "" {
		entry.WorkspaceID = active
	}
	if entry.WorkspaceID != active {
		return false
	}
	if entry.TaskID != "" && a.tasks != nil {
		if _, err := a.tasks.GetTask(entry.TaskID); err != nil {
			if t, ok := a.tasks.FindBySession(entry.TaskID); ok {
				entry.TaskID = t.ID
			}
		}
	}
	a.logs.Append(entry)
	return true
}
