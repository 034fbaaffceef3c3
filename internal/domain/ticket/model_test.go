package ticket_test

import (
	"testing"

	"github.com/rpggio/boardsync/internal/domain/ticket"
	"github.com/stretchr/testify/require"
)

func TestStatus_Valid(t *testing.T) {
	require.True(t, ticket.StatusTodo.Valid())
	require.True(t, ticket.StatusInProgress.Valid())
	require.True(t, ticket.StatusDone.Valid())
	require.False(t, ticket.Status("archived").Valid())
	require.False(t, ticket.Status("").Valid())
}

func TestMerge_NewFieldsWin(t *testing.T) {
	old := ticket.Ticket{
		ID:          "t1",
		ProjectID:   "p1",
		Description: "fix bug",
		Status:      ticket.StatusTodo,
		CreatedBy:   "alice",
		CreatedAt:   1000,
	}
	incoming := ticket.Ticket{
		ID:        "t1",
		Status:    ticket.StatusDone,
		UpdatedBy: "bob",
		UpdatedAt: 2000,
	}

	merged := ticket.Merge(old, incoming)
	require.Equal(t, "t1", merged.ID)
	require.Equal(t, "p1", merged.ProjectID)
	require.Equal(t, "fix bug", merged.Description)
	require.Equal(t, ticket.StatusDone, merged.Status)
	require.Equal(t, "alice", merged.CreatedBy)
	require.Equal(t, "bob", merged.UpdatedBy)
	require.Equal(t, int64(1000), merged.CreatedAt)
	require.Equal(t, int64(2000), merged.UpdatedAt)
}

func TestMerge_AbsentFieldsRetained(t *testing.T) {
	old := ticket.Ticket{
		ID:          "t1",
		ProjectID:   "p1",
		Description: "fix bug",
		Status:      ticket.StatusInProgress,
	}

	merged := ticket.Merge(old, ticket.Ticket{ID: "t1"})
	require.Equal(t, old, merged)
}

func TestMerge_IdentityImmutable(t *testing.T) {
	old := ticket.Ticket{ID: "t1", ProjectID: "p1", Description: "a", Status: ticket.StatusTodo}
	incoming := ticket.Ticket{ID: "t2", ProjectID: "p2", Description: "b"}

	merged := ticket.Merge(old, incoming)
	require.Equal(t, "t1", merged.ID)
	require.Equal(t, "p1", merged.ProjectID)
	require.Equal(t, "b", merged.Description)
}
