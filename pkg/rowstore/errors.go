package rowstore

import (
	"errors"
	"fmt"
)

// Common errors returned by the row store.
var (
	// ErrNotAuthenticated is returned when no user session exists.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrWriteFailed is returned when a create, update, or delete call
	// did not take effect. Network, validation, and server failures are
	// collapsed into this one kind: the caller's recovery is the same
	// (surface the error and allow a manual retry).
	ErrWriteFailed = errors.New("remote write failed")

	// ErrNotFound is returned when the identified row does not exist.
	ErrNotFound = errors.New("row not found")
)

// APIError wraps a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}
