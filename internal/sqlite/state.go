package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rpggio/boardsync/internal/domain/ticket"
)

// tokenKey is the fixed key the bearer credential is stored under; its
// absence means unauthenticated.
const tokenKey = "token"

// StateStore persists client-local state: the session credential and the
// last-known ticket snapshot per project.
type StateStore struct {
	db *DB
}

// NewStateStore creates a new StateStore
func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db}
}

// Token returns the stored bearer credential, or empty when absent.
func (s *StateStore) Token() (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, tokenKey).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return value, nil
}

// SetToken stores the bearer credential.
func (s *StateStore) SetToken(token string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		tokenKey, token,
	)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// ClearToken removes the stored credential, returning the client to the
// unauthenticated state.
func (s *StateStore) ClearToken() error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, tokenKey); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// SaveSnapshot caches a project's ticket list.
func (s *StateStore) SaveSnapshot(projectID string, tickets []ticket.Ticket) error {
	data, err := json.Marshal(tickets)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO snapshots (project_id, data, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`,
		projectID, string(data), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the cached ticket list for a project; nil when no
// snapshot exists.
func (s *StateStore) LoadSnapshot(projectID string) ([]ticket.Ticket, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM snapshots WHERE project_id = ?`, projectID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var tickets []ticket.Ticket
	if err := json.Unmarshal([]byte(data), &tickets); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return tickets, nil
}
