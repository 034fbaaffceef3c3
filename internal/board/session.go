// Package board orchestrates the active-project lifecycle: it drives the
// gateway and push channel, applies their results to the reconciliation
// store, and derives the notification feed.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/boardsync/internal/domain/notification"
	"github.com/rpggio/boardsync/internal/domain/ticket"
	"github.com/rpggio/boardsync/internal/push"
	"github.com/rpggio/boardsync/internal/store"
)

const (
	// DefaultPollInterval is the drift-correction fetch cadence while a
	// project is active.
	DefaultPollInterval = 10 * time.Second
	// syncRetryBudget is how many consecutive sync failures are suppressed
	// before the session reports the connection as lost.
	syncRetryBudget = 3
)

// Config wires a session's collaborators.
type Config struct {
	Gateway Gateway
	Push    PushChannel
	// Cache may be nil; without it no snapshot survives a restart.
	Cache        SnapshotCache
	PollInterval time.Duration
	// OnError receives user-facing mutation errors (rollbacks included).
	// May be nil.
	OnError func(error)
	// OnChange observes store mutations, typically to redraw. May be nil.
	OnChange func(store.Change)
	Logger   *slog.Logger
}

// Session is the single source of truth for the client's board state.
// All mutations, local or pushed, flow through its store and feed.
type Session struct {
	gateway Gateway
	push    PushChannel
	cache   SnapshotCache
	logger  *slog.Logger

	store        *store.Store
	feed         *notification.Feed
	pollInterval time.Duration
	onError      func(error)

	mu             sync.Mutex
	epoch          uint64
	active         string
	cancelPoll     context.CancelFunc
	syncFailures   int
	connectionLost bool
}

// NewSession creates a session with an empty store and feed.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}

	return &Session{
		gateway:      cfg.Gateway,
		push:         cfg.Push,
		cache:        cfg.Cache,
		logger:       logger,
		store:        store.New(cfg.OnChange),
		feed:         notification.NewFeed(),
		pollInterval: pollInterval,
		onError:      cfg.OnError,
	}
}

// Store exposes the reconciliation store for read access.
func (s *Session) Store() *store.Store {
	return s.store
}

// Feed exposes the notification feed.
func (s *Session) Feed() *notification.Feed {
	return s.feed
}

// ActiveProject returns the currently bound project, if any.
func (s *Session) ActiveProject() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ConnectionLost reports whether sync failures exhausted the retry budget.
func (s *Session) ConnectionLost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionLost
}

// Snapshot returns the grouped view of the active project's tickets.
func (s *Session) Snapshot() store.Snapshot {
	return s.store.Snapshot(s.ActiveProject())
}

// PushHandlers returns the typed callbacks to wire into the push adapter.
func (s *Session) PushHandlers() push.Handlers {
	return push.Handlers{
		OnCreated: s.HandleTicketCreated,
		OnUpdated: s.HandleTicketUpdated,
		OnDeleted: s.HandleTicketDeleted,
	}
}

// EnterProject binds the session to a project: it renders any cached
// snapshot immediately, joins the push room, kicks an initial list fetch,
// and starts the drift-correction poller. Responses still in flight for a
// previously active project are discarded by the epoch guard.
func (s *Session) EnterProject(ctx context.Context, projectID string) {
	s.mu.Lock()
	if s.active == projectID {
		s.mu.Unlock()
		return
	}
	previous := s.active
	if s.cancelPoll != nil {
		s.cancelPoll()
	}
	s.epoch++
	epoch := s.epoch
	s.active = projectID
	s.syncFailures = 0
	s.connectionLost = false
	pollCtx, cancel := context.WithCancel(ctx)
	s.cancelPoll = cancel
	s.mu.Unlock()

	if previous != "" {
		s.push.LeaveProject(previous)
	}

	if s.cache != nil {
		if cached, err := s.cache.LoadSnapshot(projectID); err == nil && len(cached) > 0 {
			// Stale but present until the first fetch lands.
			s.store.ReplaceAll(projectID, cached)
		}
	}

	s.push.JoinProject(projectID)

	go s.refresh(pollCtx, projectID, epoch)
	go s.pollLoop(pollCtx, projectID, epoch)
}

// LeaveProject unbinds from the active project and stops the poller.
func (s *Session) LeaveProject() {
	s.mu.Lock()
	previous := s.active
	s.active = ""
	s.epoch++
	cancel := s.cancelPoll
	s.cancelPoll = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if previous != "" {
		s.push.LeaveProject(previous)
	}
}

// CreateTicket creates a ticket through the gateway and reconciles the
// confirmed result.
func (s *Session) CreateTicket(ctx context.Context, projectID, description string) (ticket.Ticket, error) {
	created, err := s.gateway.Create(ctx, projectID, description)
	if err != nil {
		s.surface(err)
		return ticket.Ticket{}, err
	}

	if s.discardForInactive(projectID, "create") {
		return created, nil
	}

	s.store.Upsert(created)
	s.appendNotification(notification.KindCreated, created.ID,
		fmt.Sprintf("New ticket %q created", created.Description))
	return created, nil
}

// UpdateTicket applies a partial update through the gateway and reconciles
// the authoritative result.
func (s *Session) UpdateTicket(ctx context.Context, id string, patch ticket.Patch) (ticket.Ticket, error) {
	updated, err := s.gateway.Update(ctx, id, patch)
	if err != nil {
		s.surface(err)
		return ticket.Ticket{}, err
	}

	if !s.discardForInactive(updated.ProjectID, "update") {
		s.store.Upsert(updated)
		s.appendNotification(notification.KindUpdated, updated.ID,
			fmt.Sprintf("Ticket %q updated", updated.Description))
	}
	return updated, nil
}

// DeleteTicket deletes a ticket through the gateway and removes it locally.
func (s *Session) DeleteTicket(ctx context.Context, id string) error {
	if err := s.gateway.Delete(ctx, id); err != nil {
		s.surface(err)
		return err
	}

	s.store.Remove(id)
	s.appendNotification(notification.KindDeleted, id, fmt.Sprintf("Ticket %s deleted", id))
	return nil
}

// OnDrop translates a drag gesture into a status mutation. Cross-column
// moves apply optimistically and roll back if the confirming update fails;
// same-column moves are a local view concern and never hit the network.
func (s *Session) OnDrop(ctx context.Context, ticketID string, sourceStatus, destinationStatus ticket.Status, sourceIndex, destinationIndex int) error {
	if sourceStatus == destinationStatus && sourceIndex == destinationIndex {
		return nil
	}

	projectID := s.ActiveProject()
	if projectID == "" {
		return ErrNoActiveProject
	}

	if sourceStatus == destinationStatus {
		s.store.Reorder(projectID, sourceStatus, sourceIndex, destinationIndex)
		return nil
	}

	current, ok := s.store.Get(projectID, ticketID)
	if !ok {
		return ErrUnknownTicket
	}

	// Optimistic: the move renders before the remote confirms it.
	s.store.Upsert(ticket.Ticket{ID: ticketID, ProjectID: projectID, Status: destinationStatus})

	status := destinationStatus
	updated, err := s.gateway.Update(ctx, ticketID, ticket.Patch{Status: &status})
	if err != nil {
		s.store.Upsert(ticket.Ticket{ID: ticketID, ProjectID: projectID, Status: sourceStatus})
		s.logger.Warn("drag move rejected, rolled back",
			"ticketId", ticketID, "from", sourceStatus, "to", destinationStatus, "error", err)
		s.surface(err)
		return err
	}

	// The authoritative response supersedes the optimistic value.
	s.store.Upsert(updated)
	s.appendNotification(notification.KindUpdated, ticketID,
		fmt.Sprintf("Ticket %q updated", current.Description))
	return nil
}

// HandleTicketCreated reconciles an inbound created event.
func (s *Session) HandleTicketCreated(t ticket.Ticket) {
	s.store.Upsert(t)
	s.appendNotification(notification.KindCreated, t.ID,
		fmt.Sprintf("New ticket %q created", t.Description))
}

// HandleTicketUpdated reconciles an inbound updated event.
func (s *Session) HandleTicketUpdated(t ticket.Ticket) {
	s.store.Upsert(t)
	s.appendNotification(notification.KindUpdated, t.ID,
		fmt.Sprintf("Ticket %q updated", t.Description))
}

// HandleTicketDeleted reconciles an inbound deleted event.
func (s *Session) HandleTicketDeleted(id string) {
	s.store.Remove(id)
	s.appendNotification(notification.KindDeleted, id, fmt.Sprintf("Ticket %s deleted", id))
}

func (s *Session) pollLoop(ctx context.Context, projectID string, epoch uint64) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx, projectID, epoch)
		}
	}
}

// refresh performs one drift-correction fetch and applies it unless the
// session has moved on to another project in the meantime.
func (s *Session) refresh(ctx context.Context, projectID string, epoch uint64) {
	tickets, err := s.gateway.List(ctx, projectID)

	s.mu.Lock()
	stale := s.epoch != epoch
	s.mu.Unlock()
	if stale {
		// Late response for an abandoned project; not an error.
		s.logger.Debug("ignoring stale list response", "projectId", projectID)
		return
	}

	if err != nil {
		s.noteSyncFailure(err)
		return
	}
	s.noteSyncSuccess()

	s.store.ReplaceAll(projectID, tickets)
	if s.cache != nil {
		if err := s.cache.SaveSnapshot(projectID, tickets); err != nil {
			s.logger.Warn("snapshot cache write failed", "projectId", projectID, "error", err)
		}
	}
}

func (s *Session) noteSyncFailure(err error) {
	s.mu.Lock()
	s.syncFailures++
	lost := s.syncFailures >= syncRetryBudget
	if lost {
		s.connectionLost = true
	}
	s.mu.Unlock()

	if lost {
		s.logger.Error("drift-correction sync failing, connection lost", "error", err)
	} else {
		s.logger.Warn("drift-correction sync failed", "error", err)
	}
}

func (s *Session) noteSyncSuccess() {
	s.mu.Lock()
	s.syncFailures = 0
	s.connectionLost = false
	s.mu.Unlock()
}

// discardForInactive drops a mutation confirmation that resolved after the
// session switched away from its project.
func (s *Session) discardForInactive(projectID, op string) bool {
	if projectID == "" {
		return false
	}
	s.mu.Lock()
	inactive := s.active != "" && s.active != projectID
	s.mu.Unlock()
	if inactive {
		s.logger.Debug("ignoring stale mutation response", "op", op, "projectId", projectID)
	}
	return inactive
}

func (s *Session) appendNotification(kind notification.Kind, entityID, message string) {
	s.feed.Append(notification.Notification{
		ID:        notification.DeriveID(kind, entityID),
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Session) surface(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}
