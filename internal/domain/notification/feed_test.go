package notification_test

import (
	"fmt"
	"testing"

	"github.com/rpggio/boardsync/internal/domain/notification"
	"github.com/stretchr/testify/require"
)

func TestFeed_Bounded(t *testing.T) {
	feed := notification.NewFeed()
	for i := 0; i < 60; i++ {
		feed.Append(notification.Notification{
			ID:        fmt.Sprintf("n%d", i),
			Message:   fmt.Sprintf("message %d", i),
			Timestamp: int64(i),
		})
	}

	entries := feed.List()
	require.Len(t, entries, 50)
	// Newest first: n59 down to n10.
	require.Equal(t, "n59", entries[0].ID)
	require.Equal(t, "n10", entries[49].ID)
}

func TestFeed_AppendUpsertsByID(t *testing.T) {
	feed := notification.NewFeed()
	id := notification.DeriveID(notification.KindUpdated, "t1")

	feed.Append(notification.Notification{ID: id, Message: "Ticket \"fix bug\" updated", Timestamp: 1})
	feed.Append(notification.Notification{ID: id, Message: "Ticket \"fix bug\" updated", Timestamp: 2})

	entries := feed.List()
	require.Len(t, entries, 1)
	require.Equal(t, int64(2), entries[0].Timestamp)
}

func TestFeed_UpsertPreservesReadFlag(t *testing.T) {
	feed := notification.NewFeed()
	id := notification.DeriveID(notification.KindCreated, "t1")

	feed.Append(notification.Notification{ID: id, Message: "created", Timestamp: 1})
	feed.MarkRead(id)
	feed.Append(notification.Notification{ID: id, Message: "created", Timestamp: 2})

	entries := feed.List()
	require.Len(t, entries, 1)
	require.True(t, entries[0].Read)
	require.Equal(t, 0, feed.UnreadCount())
}

func TestFeed_MarkReadAndUnreadCount(t *testing.T) {
	feed := notification.NewFeed()
	feed.Append(notification.Notification{ID: "a", Message: "one"})
	feed.Append(notification.Notification{ID: "b", Message: "two"})
	feed.Append(notification.Notification{ID: "c", Message: "three"})

	require.Equal(t, 3, feed.UnreadCount())

	feed.MarkRead("b")
	require.Equal(t, 2, feed.UnreadCount())

	// Unknown ID is a no-op.
	feed.MarkRead("missing")
	require.Equal(t, 2, feed.UnreadCount())

	feed.MarkAllRead()
	require.Equal(t, 0, feed.UnreadCount())
}

func TestDeriveID_Deterministic(t *testing.T) {
	require.Equal(t,
		notification.DeriveID(notification.KindDeleted, "t9"),
		notification.DeriveID(notification.KindDeleted, "t9"),
	)
	require.NotEqual(t,
		notification.DeriveID(notification.KindCreated, "t9"),
		notification.DeriveID(notification.KindDeleted, "t9"),
	)
}
