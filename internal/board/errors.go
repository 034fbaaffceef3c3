package board

import "errors"

var (
	// ErrUnknownTicket indicates a drag referenced a ticket the local
	// collection doesn't hold.
	ErrUnknownTicket = errors.New("ticket not found in local collection")
	// ErrNoActiveProject indicates an operation that needs a bound project
	// ran without one.
	ErrNoActiveProject = errors.New("no active project")
)
