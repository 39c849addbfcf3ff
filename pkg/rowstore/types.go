// Package rowstore provides a client for the remote row-oriented
// persistence service backing trainsync.
//
// The service exposes generic create/read/update/delete over named
// collections; each call takes a plain field map and returns the
// affected row with its server-assigned identifier. The store makes
// no transactional guarantees across rows; callers that need
// multi-row consistency must reconcile it themselves.
//
// Example usage:
//
//	store := rowstore.NewHTTP(rowstore.Config{
//	    BaseURL: "https://api.example.com",
//	    Token:   token,
//	})
//	row, err := store.Insert(ctx, rowstore.Sessions, rowstore.Fields{
//	    "kind": "strength",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(row.ID())
package rowstore

import (
	"context"
	"fmt"
	"time"
)

// Collection names used by trainsync.
const (
	// Sessions holds one row per recorded workout session.
	Sessions = "sessions"

	// SessionItems holds one row per exercise instance inside a session.
	SessionItems = "session_items"

	// SessionSets holds one row per logged set.
	SessionSets = "session_sets"

	// PlannedSessions holds the workout calendar entries.
	PlannedSessions = "planned_sessions"
)

// Fields is a plain field map sent to or received from the service.
type Fields = map[string]any

// Row is a row returned by the service.
type Row map[string]any

// ID returns the server-assigned row identifier, or empty string
// if the row has none.
func (r Row) ID() string {
	return r.String("id")
}

// String returns the named field as a string.
//
// Numeric values are formatted; absent or null fields yield "".
func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// JSON numbers decode as float64.
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Float returns the named field as a float64 and whether it was present.
func (r Row) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Int returns the named field as an int and whether it was present.
func (r Row) Int(key string) (int, bool) {
	f, ok := r.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Time returns the named field parsed as RFC 3339 and whether it parsed.
func (r Row) Time(key string) (time.Time, bool) {
	s := r.String(key)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Filter restricts a Select to rows whose fields equal the given values.
type Filter = map[string]any

// Store is the row-oriented persistence service contract.
//
// Each operation is independent; there is no multi-row atomicity.
// All methods are safe for concurrent use.
type Store interface {
	// Insert creates a row in the named collection.
	//
	// Returns the created row including its server-assigned id,
	// or ErrWriteFailed if the create did not take effect.
	Insert(ctx context.Context, collection string, fields Fields) (Row, error)

	// Update patches the identified row with the given fields.
	//
	// Returns the updated row, ErrNotFound if no such row exists,
	// or ErrWriteFailed on any other failure.
	Update(ctx context.Context, collection, id string, fields Fields) (Row, error)

	// Delete removes the identified row.
	//
	// Deleting an absent row is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Select returns all rows matching the filter.
	//
	// A nil filter returns every row in the collection.
	Select(ctx context.Context, collection string, filter Filter) ([]Row, error)
}

// UserContext yields the identity of the active user.
//
// Every write path must consult it before attempting a write; an
// ErrNotAuthenticated result is terminal for the operation.
type UserContext interface {
	// CurrentUserID returns the active user's stable identifier,
	// or ErrNotAuthenticated when no user session exists.
	CurrentUserID() (string, error)
}

// StaticUser is a UserContext bound to a fixed identifier.
//
// An empty identifier means "no session".
type StaticUser string

// CurrentUserID implements UserContext.CurrentUserID.
func (u StaticUser) CurrentUserID() (string, error) {
	if u == "" {
		return "", ErrNotAuthenticated
	}
	return string(u), nil
}
