package notification

import "fmt"

// Kind identifies the mutation a notification describes.
type Kind string

const (
	KindCreated Kind = "create"
	KindUpdated Kind = "update"
	KindDeleted Kind = "delete"
)

// Notification is one entry in the activity feed.
//
// Timestamp is epoch milliseconds.
type Notification struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Read      bool   `json:"read"`
}

// DeriveID builds a deterministic notification ID from the event kind and
// the entity it concerns. The same logical mutation observed twice (local
// confirmation plus push echo) derives the same ID, so the feed collapses
// the pair into a single entry.
func DeriveID(kind Kind, entityID string) string {
	return fmt.Sprintf("notif-%s-%s", kind, entityID)
}
