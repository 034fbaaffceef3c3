package gateway

import (
	"errors"
	"fmt"
)

// ErrUnauthorized indicates the remote authority rejected the bearer
// credential; the local session is invalidated when it occurs.
var ErrUnauthorized = errors.New("unauthorized")

// ValidationError reports malformed input caught before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// RemoteError reports a non-2xx response from the remote authority.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (status %d): %s", e.Status, e.Message)
}

// NetworkError reports a transport failure or timeout with no usable
// response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
