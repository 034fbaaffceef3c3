// Package push maintains the persistent subscription to the remote
// authority's event stream and decodes inbound events into typed domain
// events.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rpggio/boardsync/internal/domain/ticket"
)

// State is the adapter's connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Event names on the wire.
const (
	EventJoinProject   = "joinProject"
	EventLeaveProject  = "leaveProject"
	EventTicketCreated = "ticketCreated"
	EventTicketUpdated = "ticketUpdated"
	EventTicketDeleted = "ticketDeleted"
)

const (
	initialBackoff   = time.Second
	maxBackoff       = 30 * time.Second
	handshakeTimeout = 10 * time.Second
)

// Handlers are the typed callbacks for the three inbound event kinds.
// They are fixed at construction; there is no open-ended listener registry.
type Handlers struct {
	OnCreated func(ticket.Ticket)
	OnUpdated func(ticket.Ticket)
	OnDeleted func(ticketID string)
}

// frame is the wire envelope for both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Adapter owns exactly one live subscription to the push transport.
// It tracks the active project and re-issues the join after a reconnect.
type Adapter struct {
	wsURL    string
	token    func() string
	handlers Handlers
	logger   *slog.Logger
	dialer   *websocket.Dialer

	mu      sync.Mutex
	writeMu sync.Mutex
	state   State
	conn    *websocket.Conn
	project string
	cancel  context.CancelFunc
}

// NewAdapter creates a push adapter for the given websocket URL. token
// supplies the bearer credential presented at subscribe time.
func NewAdapter(wsURL string, token func() string, handlers Handlers, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		wsURL:    wsURL,
		token:    token,
		handlers: handlers,
		logger:   logger,
		dialer:   &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		state:    StateDisconnected,
	}
}

// Connect starts the connection loop. It returns immediately; the loop
// keeps reconnecting with backoff until Close or context cancellation.
func (a *Adapter) Connect(ctx context.Context) {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.state = StateConnecting
	a.mu.Unlock()

	go a.run(runCtx)
}

// Close tears the subscription down and leaves the adapter Disconnected.
func (a *Adapter) Close() {
	a.mu.Lock()
	cancel := a.cancel
	conn := a.conn
	a.cancel = nil
	a.conn = nil
	a.state = StateDisconnected
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// State returns the current connection state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// ActiveProject returns the project the adapter is currently bound to.
func (a *Adapter) ActiveProject() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.project
}

// JoinProject binds the adapter to a project's event stream. Joining the
// already-active project is a no-op so event delivery never duplicates.
func (a *Adapter) JoinProject(projectID string) {
	a.mu.Lock()
	if a.project == projectID {
		a.mu.Unlock()
		return
	}
	previous := a.project
	a.project = projectID
	conn := a.conn
	a.mu.Unlock()

	if conn != nil {
		if previous != "" {
			a.write(conn, EventLeaveProject, previous)
		}
		a.write(conn, EventJoinProject, projectID)
	}
}

// LeaveProject unbinds from the project's event stream.
func (a *Adapter) LeaveProject(projectID string) {
	a.mu.Lock()
	if a.project != projectID {
		a.mu.Unlock()
		return
	}
	a.project = ""
	conn := a.conn
	a.mu.Unlock()

	if conn != nil {
		a.write(conn, EventLeaveProject, projectID)
	}
}

// Emit sends an outbound event best-effort; when disconnected the event is
// dropped, never queued.
func (a *Adapter) Emit(event string, payload any) {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()

	if conn == nil {
		a.logger.Debug("dropping outbound event while disconnected", "event", event)
		return
	}
	a.write(conn, event, payload)
}

func (a *Adapter) run(ctx context.Context) {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			a.setState(StateDisconnected)
			return
		}

		conn, resp, err := a.dialer.DialContext(ctx, a.dialURL(), nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			a.setState(StateReconnecting)
			a.logger.Warn("push channel dial failed", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				a.setState(StateDisconnected)
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = initialBackoff

		a.mu.Lock()
		a.conn = conn
		a.state = StateConnected
		project := a.project
		a.mu.Unlock()

		// Reconnection re-issues the join for the active project.
		if project != "" {
			a.write(conn, EventJoinProject, project)
		}
		a.logger.Info("push channel connected")

		a.readLoop(conn)

		a.mu.Lock()
		a.conn = nil
		if ctx.Err() != nil {
			a.state = StateDisconnected
		} else {
			a.state = StateReconnecting
		}
		a.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("push channel lost, reconnecting")
	}
}

func (a *Adapter) dialURL() string {
	token := a.token()
	if token == "" {
		return a.wsURL
	}
	return a.wsURL + "?token=" + url.QueryEscape(token)
}

func (a *Adapter) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			_ = conn.Close()
			return
		}
		a.dispatch(f)
	}
}

// dispatch decodes one inbound frame and forwards it to the typed handler.
// Events for a project other than the active one are dropped; the transport
// scopes delivery already, this is a defensive check only.
func (a *Adapter) dispatch(f frame) {
	switch f.Event {
	case EventTicketCreated, EventTicketUpdated:
		var t ticket.Ticket
		if err := json.Unmarshal(f.Data, &t); err != nil {
			a.logger.Warn("undecodable ticket event", "event", f.Event, "error", err)
			return
		}
		if a.mismatchedProject(t.ProjectID) {
			a.logger.Warn("dropping event for inactive project", "event", f.Event, "projectId", t.ProjectID)
			return
		}
		if f.Event == EventTicketCreated {
			if a.handlers.OnCreated != nil {
				a.handlers.OnCreated(t)
			}
		} else if a.handlers.OnUpdated != nil {
			a.handlers.OnUpdated(t)
		}
	case EventTicketDeleted:
		var id string
		if err := json.Unmarshal(f.Data, &id); err != nil {
			a.logger.Warn("undecodable delete event", "error", err)
			return
		}
		if a.handlers.OnDeleted != nil {
			a.handlers.OnDeleted(id)
		}
	default:
		a.logger.Debug("ignoring unknown event", "event", f.Event)
	}
}

func (a *Adapter) mismatchedProject(projectID string) bool {
	if projectID == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.project != "" && a.project != projectID
}

func (a *Adapter) write(conn *websocket.Conn, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		a.logger.Warn("unencodable outbound event", "event", event, "error", err)
		return
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if err := conn.WriteJSON(frame{Event: event, Data: data}); err != nil {
		a.logger.Warn("outbound event write failed", "event", event, "error", err)
	}
}

func (a *Adapter) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}
