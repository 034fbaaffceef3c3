package board

import (
	"context"

	"github.com/rpggio/boardsync/internal/domain/ticket"
)

// Gateway is the remote mutation surface the session drives.
type Gateway interface {
	Create(ctx context.Context, projectID, description string) (ticket.Ticket, error)
	Update(ctx context.Context, id string, patch ticket.Patch) (ticket.Ticket, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, projectID string) ([]ticket.Ticket, error)
}

// PushChannel is the project-scoped subscription surface.
type PushChannel interface {
	JoinProject(projectID string)
	LeaveProject(projectID string)
}

// SnapshotCache persists the last-known ticket list per project so a fresh
// session can render stale-but-present data before its first fetch.
type SnapshotCache interface {
	SaveSnapshot(projectID string, tickets []ticket.Ticket) error
	LoadSnapshot(projectID string) ([]ticket.Ticket, error)
}
