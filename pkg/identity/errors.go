package identity

import "errors"

// Common errors returned by the identity map.
var (
	// ErrAlreadyBound is returned when a local id already carries a
	// different remote id. This is an invariant violation indicating
	// a duplicate create, not a recoverable user-facing condition.
	ErrAlreadyBound = errors.New("local id already bound to a different remote id")

	// ErrEmptyRemoteID is returned when binding an empty remote id.
	ErrEmptyRemoteID = errors.New("remote id must not be empty")
)
