package testserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ticketUpdate is the outbound payload clients emit after a successful
// mutation; the hub rebroadcasts it to the rest of the project room.
type ticketUpdate struct {
	ID          string `json:"id"`
	ProjectID   string `json:"projectId"`
	Description string `json:"description"`
	Status      string `json:"status"`
	UpdatedBy   string `json:"updatedBy"`
	UpdatedAt   int64  `json:"updatedAt"`
	Deleted     bool   `json:"deleted"`
	Type        string `json:"type"`
}

type wsClient struct {
	conn  *websocket.Conn
	actor string
	mu    sync.Mutex
}

func (c *wsClient) send(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteJSON(wsFrame{Event: event, Data: payload})
}

// hub keeps per-project rooms and relays ticket events between clients.
type hub struct {
	verify   func(token string) (string, error)
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]map[*wsClient]bool
}

func newHub(verify func(token string) (string, error)) *hub {
	return &hub{
		verify: verify,
		rooms:  make(map[string]map[*wsClient]bool),
	}
}

func (h *hub) serve(w http.ResponseWriter, r *http.Request) {
	actor, err := h.verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &wsClient{conn: conn, actor: actor}
	defer h.evict(client)

	for {
		var f wsFrame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		h.handle(client, f)
	}
}

func (h *hub) handle(client *wsClient, f wsFrame) {
	switch f.Event {
	case "joinProject":
		var projectID string
		if json.Unmarshal(f.Data, &projectID) == nil && projectID != "" {
			h.join(client, projectID)
		}
	case "leaveProject":
		var projectID string
		if json.Unmarshal(f.Data, &projectID) == nil {
			h.leave(client, projectID)
		}
	case "ticketUpdate":
		var update ticketUpdate
		if json.Unmarshal(f.Data, &update) == nil && update.ID != "" {
			h.relay(client, update)
		}
	}
}

// relay fans a client's mutation out to the other members of its rooms as
// the corresponding inbound event kind.
func (h *hub) relay(origin *wsClient, update ticketUpdate) {
	rooms := []string{update.ProjectID}
	if update.ProjectID == "" {
		// Deletions carry no project; route through the origin's rooms.
		rooms = h.roomsOf(origin)
	}

	for _, projectID := range rooms {
		switch update.Type {
		case "deleted":
			h.broadcast(projectID, origin, "ticketDeleted", update.ID)
		case "created":
			h.broadcast(projectID, origin, "ticketCreated", h.eventTicket(projectID, update))
		default:
			h.broadcast(projectID, origin, "ticketUpdated", h.eventTicket(projectID, update))
		}
	}
}

// eventTicket renders the canonical ticket shape pushed to subscribers.
func (h *hub) eventTicket(projectID string, update ticketUpdate) map[string]any {
	event := map[string]any{
		"id":          update.ID,
		"projectId":   projectID,
		"description": update.Description,
		"status":      update.Status,
	}
	if update.UpdatedBy != "" {
		event["updatedBy"] = update.UpdatedBy
		event["updatedAt"] = update.UpdatedAt
	}
	return event
}

func (h *hub) join(client *wsClient, projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[projectID]
	if room == nil {
		room = make(map[*wsClient]bool)
		h.rooms[projectID] = room
	}
	room[client] = true
}

func (h *hub) leave(client *wsClient, projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[projectID], client)
}

func (h *hub) evict(client *wsClient) {
	h.mu.Lock()
	for _, room := range h.rooms {
		delete(room, client)
	}
	h.mu.Unlock()
	_ = client.conn.Close()
}

func (h *hub) roomSize(projectID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[projectID])
}

func (h *hub) roomsOf(client *wsClient) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []string
	for projectID, room := range h.rooms {
		if room[client] {
			out = append(out, projectID)
		}
	}
	return out
}

func (h *hub) broadcast(projectID string, origin *wsClient, event string, data any) {
	h.mu.Lock()
	members := make([]*wsClient, 0, len(h.rooms[projectID]))
	for member := range h.rooms[projectID] {
		if member != origin {
			members = append(members, member)
		}
	}
	h.mu.Unlock()

	for _, member := range members {
		member.send(event, data)
	}
}
