// Package testserver hosts an in-process stand-in for the remote
// authority: the REST mutation surface, JWT bearer auth, and the
// project-scoped websocket event stream.
package testserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type storedProject struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type storedTicket struct {
	ID          string
	ProjectID   string
	Description string
	Status      string
	CreatedBy   string
	UpdatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TestServer is an in-memory remote authority for functional tests.
type TestServer struct {
	Server *httptest.Server

	secret []byte
	hub    *hub

	mu          sync.Mutex
	projects    map[string]storedProject
	order       []string
	tickets     map[string]*storedTicket
	ticketOrder map[string][]string
}

// New starts a test authority; it shuts down with the test.
func New(t *testing.T) *TestServer {
	t.Helper()

	ts := &TestServer{
		secret:      []byte("boardsync-test-secret"),
		projects:    make(map[string]storedProject),
		tickets:     make(map[string]*storedTicket),
		ticketOrder: make(map[string][]string),
	}
	ts.hub = newHub(ts.verifyToken)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Use(ts.authMiddleware)
		r.Get("/project/list", ts.handleProjectList)
		r.Post("/project/create", ts.handleProjectCreate)
		r.Get("/ticket/list", ts.handleTicketList)
		r.Post("/ticket/create", ts.handleTicketCreate)
		r.Put("/ticket/update/{id}", ts.handleTicketUpdate)
		r.Delete("/ticket/delete/{id}", ts.handleTicketDelete)
	})
	router.Get("/ws", ts.hub.serve)

	ts.Server = httptest.NewServer(router)
	t.Cleanup(ts.Server.Close)

	return ts
}

// APIURL returns the REST base URL.
func (ts *TestServer) APIURL() string {
	return ts.Server.URL + "/api"
}

// WSURL returns the websocket endpoint URL.
func (ts *TestServer) WSURL() string {
	return "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/ws"
}

// RoomSize reports how many subscribers a project room currently has.
func (ts *TestServer) RoomSize(projectID string) int {
	return ts.hub.roomSize(projectID)
}

// MintToken issues a bearer credential for the given actor.
func (ts *TestServer) MintToken(t *testing.T, user string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   user,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secret)
	require.NoError(t, err)
	return signed
}

// SeedProject registers a project directly and returns its ID.
func (ts *TestServer) SeedProject(name string) string {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	id := uuid.NewString()
	ts.projects[id] = storedProject{ID: id, Name: name, CreatedAt: time.Now()}
	ts.order = append(ts.order, id)
	return id
}

func (ts *TestServer) verifyToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return ts.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	claims := parsed.Claims.(*jwt.RegisteredClaims)
	return claims.Subject, nil
}

type actorKey struct{}

func (ts *TestServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		actor, err := ts.verifyToken(token)
		if err != nil || actor == "" {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(r *http.Request) string {
	actor, _ := r.Context().Value(actorKey{}).(string)
	return actor
}

func (ts *TestServer) handleProjectList(w http.ResponseWriter, _ *http.Request) {
	ts.mu.Lock()
	list := make([]map[string]any, 0, len(ts.order))
	for _, id := range ts.order {
		proj := ts.projects[id]
		list = append(list, map[string]any{
			"_id":       proj.ID,
			"name":      proj.Name,
			"createdAt": proj.CreatedAt.Format(time.RFC3339),
		})
	}
	ts.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"list": list, "count": len(list)})
}

func (ts *TestServer) handleProjectCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "project name is required"})
		return
	}

	id := ts.SeedProject(body.Name)
	writeJSON(w, http.StatusCreated, map[string]any{"_id": id, "name": body.Name})
}

func (ts *TestServer) handleTicketList(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("projectId")

	ts.mu.Lock()
	data := make([]map[string]any, 0)
	for _, id := range ts.ticketOrder[projectID] {
		data = append(data, ts.rawTicketLocked(id))
	}
	ts.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (ts *TestServer) handleTicketCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID   string `json:"projectId"`
		Description string `json:"description"`
		Status      string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil ||
		body.ProjectID == "" || strings.TrimSpace(body.Description) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "projectId and description are required"})
		return
	}
	if body.Status == "" {
		body.Status = "todo"
	}

	ts.mu.Lock()
	stored := &storedTicket{
		ID:          uuid.NewString(),
		ProjectID:   body.ProjectID,
		Description: strings.TrimSpace(body.Description),
		Status:      body.Status,
		CreatedBy:   actorFrom(r),
		CreatedAt:   time.Now(),
	}
	ts.tickets[stored.ID] = stored
	ts.ticketOrder[body.ProjectID] = append(ts.ticketOrder[body.ProjectID], stored.ID)
	raw := ts.rawTicketLocked(stored.ID)
	ts.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"data": raw})
}

func (ts *TestServer) handleTicketUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "malformed update"})
		return
	}

	ts.mu.Lock()
	stored, ok := ts.tickets[id]
	if !ok {
		ts.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "ticket not found"})
		return
	}
	if body.Description != nil {
		stored.Description = *body.Description
	}
	if body.Status != nil {
		stored.Status = *body.Status
	}
	stored.UpdatedBy = actorFrom(r)
	stored.UpdatedAt = time.Now()
	raw := ts.rawTicketLocked(id)
	ts.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": raw})
}

func (ts *TestServer) handleTicketDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ts.mu.Lock()
	stored, ok := ts.tickets[id]
	if !ok {
		ts.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "ticket not found"})
		return
	}
	delete(ts.tickets, id)
	order := ts.ticketOrder[stored.ProjectID]
	for i, tid := range order {
		if tid == id {
			ts.ticketOrder[stored.ProjectID] = append(order[:i], order[i+1:]...)
			break
		}
	}
	ts.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// rawTicketLocked renders the loose Mongo-flavored wire shape the real
// authority produces: aliased identity fields and RFC3339 timestamps.
func (ts *TestServer) rawTicketLocked(id string) map[string]any {
	stored := ts.tickets[id]
	raw := map[string]any{
		"_id":         stored.ID,
		"project":     stored.ProjectID,
		"description": stored.Description,
		"status":      stored.Status,
		"createdBy":   stored.CreatedBy,
		"createdAt":   stored.CreatedAt.Format(time.RFC3339),
	}
	if stored.UpdatedBy != "" {
		raw["updatedBy"] = stored.UpdatedBy
		raw["updatedAt"] = stored.UpdatedAt.Format(time.RFC3339)
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
