package store_test

import (
	"testing"

	"github.com/rpggio/boardsync/internal/domain/ticket"
	"github.com/rpggio/boardsync/internal/store"
	"github.com/stretchr/testify/require"
)

func tk(id, projectID, description string, status ticket.Status) ticket.Ticket {
	return ticket.Ticket{ID: id, ProjectID: projectID, Description: description, Status: status}
}

func ids(tickets []ticket.Ticket) []string {
	out := make([]string, len(tickets))
	for i, t := range tickets {
		out[i] = t.ID
	}
	return out
}

func TestStore_UpsertIdempotent(t *testing.T) {
	s := store.New(nil)
	item := tk("t1", "p1", "fix bug", ticket.StatusTodo)

	s.Upsert(item)
	first := s.Snapshot("p1")

	s.Upsert(item)
	second := s.Snapshot("p1")

	require.Equal(t, first, second)
	require.Len(t, second.Group(ticket.StatusTodo), 1)
}

func TestStore_NoDuplicateIDs(t *testing.T) {
	s := store.New(nil)

	s.Upsert(tk("t1", "p1", "one", ticket.StatusTodo))
	s.Upsert(tk("t2", "p1", "two", ticket.StatusTodo))
	s.Upsert(tk("t1", "p1", "one edited", ticket.StatusTodo))
	s.Remove("t2")
	s.Remove("t2")
	s.Upsert(tk("t2", "p1", "two again", ticket.StatusDone))

	snap := s.Snapshot("p1")
	seen := map[string]int{}
	for _, group := range snap.Groups {
		for _, item := range group {
			seen[item.ID]++
		}
	}
	require.Equal(t, map[string]int{"t1": 1, "t2": 1}, seen)
	require.Equal(t, "one edited", snap.Group(ticket.StatusTodo)[0].Description)
}

func TestStore_StatusMoveChangesGroup(t *testing.T) {
	s := store.New(nil)
	s.Upsert(tk("t1", "p1", "a", ticket.StatusTodo))
	s.Upsert(tk("t2", "p1", "b", ticket.StatusDone))

	s.Upsert(tk("t1", "p1", "", ticket.StatusDone))

	snap := s.Snapshot("p1")
	require.Empty(t, snap.Group(ticket.StatusTodo))
	require.Equal(t, []string{"t2", "t1"}, ids(snap.Group(ticket.StatusDone)))
}

func TestStore_StatusMoveAppendsToGroupEnd(t *testing.T) {
	s := store.New(nil)
	s.Upsert(tk("t1", "p1", "a", ticket.StatusTodo))
	s.Upsert(tk("t2", "p1", "b", ticket.StatusInProgress))
	s.Upsert(tk("t3", "p1", "c", ticket.StatusInProgress))

	// t1 was inserted before t2 and t3, but a move lands it at the end.
	s.Upsert(tk("t1", "p1", "", ticket.StatusInProgress))

	snap := s.Snapshot("p1")
	require.Equal(t, []string{"t2", "t3", "t1"}, ids(snap.Group(ticket.StatusInProgress)))
}

func TestStore_UpsertMergesFields(t *testing.T) {
	s := store.New(nil)
	s.Upsert(ticket.Ticket{ID: "t1", ProjectID: "p1", Description: "fix bug", Status: ticket.StatusTodo, CreatedBy: "alice"})

	s.Upsert(ticket.Ticket{ID: "t1", ProjectID: "p1", Status: ticket.StatusDone, UpdatedBy: "bob"})

	got, ok := s.Get("p1", "t1")
	require.True(t, ok)
	require.Equal(t, "fix bug", got.Description)
	require.Equal(t, "alice", got.CreatedBy)
	require.Equal(t, "bob", got.UpdatedBy)
	require.Equal(t, ticket.StatusDone, got.Status)
}

func TestStore_RemoveMissingIsNoop(t *testing.T) {
	s := store.New(nil)
	s.Upsert(tk("t1", "p1", "a", ticket.StatusTodo))

	s.Remove("nope")

	require.Equal(t, 1, s.Snapshot("p1").Len())
}

func TestStore_RemoveByIDWithoutProject(t *testing.T) {
	// Push deletions carry only the ticket ID.
	s := store.New(nil)
	s.Upsert(tk("t1", "p1", "a", ticket.StatusTodo))
	s.Upsert(tk("t2", "p2", "b", ticket.StatusTodo))

	s.Remove("t2")

	require.Equal(t, 1, s.Snapshot("p1").Len())
	require.Equal(t, 0, s.Snapshot("p2").Len())
}

func TestStore_ReplaceAll(t *testing.T) {
	s := store.New(nil)
	s.Upsert(tk("stale", "p1", "old", ticket.StatusTodo))

	s.ReplaceAll("p1", []ticket.Ticket{
		tk("t1", "p1", "a", ticket.StatusTodo),
		tk("t2", "p1", "b", ticket.StatusDone),
	})

	snap := s.Snapshot("p1")
	require.Equal(t, 2, snap.Len())
	_, ok := s.Get("p1", "stale")
	require.False(t, ok)
}

func TestStore_ReorderWithinColumn(t *testing.T) {
	s := store.New(nil)
	s.Upsert(tk("t1", "p1", "a", ticket.StatusTodo))
	s.Upsert(tk("t2", "p1", "b", ticket.StatusTodo))
	s.Upsert(tk("t3", "p1", "c", ticket.StatusTodo))
	s.Upsert(tk("t4", "p1", "d", ticket.StatusDone))

	s.Reorder("p1", ticket.StatusTodo, 2, 0)

	snap := s.Snapshot("p1")
	require.Equal(t, []string{"t3", "t1", "t2"}, ids(snap.Group(ticket.StatusTodo)))
	require.Equal(t, []string{"t4"}, ids(snap.Group(ticket.StatusDone)))
}

func TestStore_ReorderOutOfRangeIsNoop(t *testing.T) {
	s := store.New(nil)
	s.Upsert(tk("t1", "p1", "a", ticket.StatusTodo))

	s.Reorder("p1", ticket.StatusTodo, 0, 5)
	s.Reorder("p1", ticket.StatusTodo, -1, 0)

	require.Equal(t, []string{"t1"}, ids(s.Snapshot("p1").Group(ticket.StatusTodo)))
}

func TestStore_ChangeHook(t *testing.T) {
	var changes []store.Change
	s := store.New(func(c store.Change) { changes = append(changes, c) })

	s.Upsert(tk("t1", "p1", "a", ticket.StatusTodo))
	s.Remove("t1")
	s.ReplaceAll("p1", nil)
	s.Remove("missing")

	require.Equal(t, []store.Change{
		{ProjectID: "p1", TicketID: "t1", Op: store.OpUpsert},
		{ProjectID: "p1", TicketID: "t1", Op: store.OpRemove},
		{ProjectID: "p1", Op: store.OpReplace},
	}, changes)
}
