// Package store holds the authoritative in-memory ticket collections.
// Mutations from any origin (gateway confirmations, push events, drag
// moves) converge here; every operation is idempotent and never fails.
package store

import (
	"sync"

	"github.com/samber/lo"

	"github.com/rpggio/boardsync/internal/domain/ticket"
)

// Op identifies the kind of store mutation reported to the change hook.
type Op string

const (
	OpUpsert  Op = "upsert"
	OpRemove  Op = "remove"
	OpReplace Op = "replace"
)

// Change describes a single store mutation.
type Change struct {
	ProjectID string
	TicketID  string
	Op        Op
}

// Snapshot is a read-only view of one project's tickets grouped by status.
// Within each group tickets appear in insertion order; a status change
// moves the ticket to the end of its new group.
type Snapshot struct {
	ProjectID string
	Groups    map[ticket.Status][]ticket.Ticket
}

// Group returns the tickets in the given status column, in order.
func (s Snapshot) Group(status ticket.Status) []ticket.Ticket {
	return s.Groups[status]
}

// Len returns the total ticket count across all groups.
func (s Snapshot) Len() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g)
	}
	return n
}

type collection struct {
	order []string
	items map[string]ticket.Ticket
}

func newCollection() *collection {
	return &collection{items: make(map[string]ticket.Ticket)}
}

// Store keeps one ordered ticket collection per project.
type Store struct {
	mu       sync.Mutex
	projects map[string]*collection
	onChange func(Change)
}

// New creates an empty store. onChange may be nil; when set it is invoked
// after every mutation, outside the store's lock.
func New(onChange func(Change)) *Store {
	return &Store{
		projects: make(map[string]*collection),
		onChange: onChange,
	}
}

// Upsert inserts the ticket or merges it into the existing entry with the
// same ID. Applying the same upsert twice yields the same state.
func (s *Store) Upsert(t ticket.Ticket) {
	if t.ID == "" {
		return
	}

	s.mu.Lock()
	projectID := t.ProjectID
	if projectID == "" {
		projectID = s.findProjectLocked(t.ID)
	}
	if projectID == "" {
		s.mu.Unlock()
		return
	}

	col := s.projects[projectID]
	if col == nil {
		col = newCollection()
		s.projects[projectID] = col
	}

	old, exists := col.items[t.ID]
	if !exists {
		col.items[t.ID] = t
		col.order = append(col.order, t.ID)
	} else {
		merged := ticket.Merge(old, t)
		col.items[t.ID] = merged
		if merged.Status != old.Status {
			// Status change moves the ticket to the end of its new group.
			col.order = moveToEnd(col.order, t.ID)
		}
	}
	s.mu.Unlock()

	s.notify(Change{ProjectID: projectID, TicketID: t.ID, Op: OpUpsert})
}

// Remove deletes the ticket with the given ID wherever it lives. Missing
// IDs are a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	projectID := s.findProjectLocked(id)
	if projectID == "" {
		s.mu.Unlock()
		return
	}

	col := s.projects[projectID]
	delete(col.items, id)
	col.order = lo.Without(col.order, id)
	s.mu.Unlock()

	s.notify(Change{ProjectID: projectID, TicketID: id, Op: OpRemove})
}

// ReplaceAll swaps the entire collection for a project, used to
// resynchronize after a full list fetch.
func (s *Store) ReplaceAll(projectID string, tickets []ticket.Ticket) {
	if projectID == "" {
		return
	}

	col := newCollection()
	for _, t := range tickets {
		if t.ID == "" {
			continue
		}
		if _, seen := col.items[t.ID]; !seen {
			col.order = append(col.order, t.ID)
		}
		col.items[t.ID] = t
	}

	s.mu.Lock()
	s.projects[projectID] = col
	s.mu.Unlock()

	s.notify(Change{ProjectID: projectID, Op: OpReplace})
}

// Get returns the ticket with the given ID in the given project.
func (s *Store) Get(projectID, id string) (ticket.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.projects[projectID]
	if col == nil {
		return ticket.Ticket{}, false
	}
	t, ok := col.items[id]
	return t, ok
}

// Snapshot returns the current grouped view of a project's tickets.
func (s *Store) Snapshot(projectID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{ProjectID: projectID, Groups: make(map[ticket.Status][]ticket.Ticket)}
	col := s.projects[projectID]
	if col == nil {
		return snap
	}

	ordered := lo.Map(col.order, func(id string, _ int) ticket.Ticket {
		return col.items[id]
	})
	snap.Groups = lo.GroupBy(ordered, func(t ticket.Ticket) ticket.Status {
		return t.Status
	})
	return snap
}

// Reorder moves a ticket within its status column. This is a view-local
// concern: the new position is not persisted remotely and does not change
// any ticket fields.
func (s *Store) Reorder(projectID string, status ticket.Status, from, to int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.projects[projectID]
	if col == nil || from == to {
		return
	}

	group := make([]string, 0)
	for _, id := range col.order {
		if col.items[id].Status == status {
			group = append(group, id)
		}
	}
	if from < 0 || from >= len(group) || to < 0 || to >= len(group) {
		return
	}

	moved := group[from]
	group = append(group[:from], group[from+1:]...)
	group = append(group[:to], append([]string{moved}, group[to:]...)...)

	// Rebuild the global order, threading the reordered group back in.
	next := 0
	for i, id := range col.order {
		if col.items[id].Status == status {
			col.order[i] = group[next]
			next++
		}
	}
}

func (s *Store) findProjectLocked(id string) string {
	for projectID, col := range s.projects {
		if _, ok := col.items[id]; ok {
			return projectID
		}
	}
	return ""
}

func (s *Store) notify(c Change) {
	if s.onChange != nil {
		s.onChange(c)
	}
}

func moveToEnd(order []string, id string) []string {
	out := lo.Without(order, id)
	return append(out, id)
}
