package notification

import (
	"sync"

	"github.com/samber/lo"
)

// DefaultCap is the feed length bound; the oldest entries are evicted
// once the cap is reached.
const DefaultCap = 50

// Feed is a bounded, newest-first activity log.
//
// Append is an upsert keyed on notification ID: a second append with the
// same ID refreshes the existing entry in place instead of duplicating it.
type Feed struct {
	mu      sync.Mutex
	cap     int
	entries []Notification
}

// NewFeed creates a feed bounded to DefaultCap entries.
func NewFeed() *Feed {
	return &Feed{cap: DefaultCap}
}

// Append adds a notification to the front of the feed, or refreshes the
// entry with the same ID if one exists. The feed is truncated to its cap,
// oldest first.
func (f *Feed) Append(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, existing := range f.entries {
		if existing.ID == n.ID {
			n.Read = existing.Read
			f.entries[i] = n
			return
		}
	}

	f.entries = append([]Notification{n}, f.entries...)
	if len(f.entries) > f.cap {
		f.entries = f.entries[:f.cap]
	}
}

// MarkRead marks the notification with the given ID as read. Unknown IDs
// are a no-op.
func (f *Feed) MarkRead(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i].Read = true
			return
		}
	}
}

// MarkAllRead marks every entry as read.
func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.entries {
		f.entries[i].Read = true
	}
}

// UnreadCount returns the number of unread entries.
func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return lo.CountBy(f.entries, func(n Notification) bool { return !n.Read })
}

// List returns a newest-first copy of the feed.
func (f *Feed) List() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Notification, len(f.entries))
	copy(out, f.entries)
	return out
}
