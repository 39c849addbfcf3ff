// Package workout provides live recording of a training session and
// its synchronization against the remote row store.
//
// The recorder applies every user intent to in-memory state
// immediately, so the UI never waits on the network, and issues the
// corresponding remote writes asynchronously. Local mutations are
// processed on a single command loop in arrival order; completion
// handlers for remote calls re-enter the same loop, so the session
// aggregate never sees concurrent writers.
//
// Creates are ordered by dependency: items wait for the session's
// server id, sets wait for their item's server id. Failed creates
// roll the optimistic insert back and surface the error; nothing is
// retried automatically.
//
// Example usage:
//
//	rec := workout.NewRecorder(workout.RecorderConfig{
//	    Store: store,
//	    User:  user,
//	}, logger.Default())
//	defer rec.Close()
//
//	if err := rec.Start(ctx, "strength", "Morning push", ""); err != nil {
//	    log.Fatal(err)
//	}
//	item, _ := rec.AddExercise(workout.ExerciseRef{CatalogID: "bench-press"})
//	rec.UpdateSet(item.Sets[0].LocalID, workout.SetPatch{Reps: workout.IntPtr(8)})
package workout

import (
	"time"

	"trainsync/pkg/identity"
)

// State is the lifecycle state of a session.
type State string

// Session lifecycle states.
//
// pending → running ⇄ paused → finished, with running/paused → aborted
// when the initial session create fails.
const (
	// StatePending is the instant after Start and before the session
	// create call resolves. UI-visible behavior matches running, but
	// child creates are queued until the server id is known.
	StatePending State = "pending"

	// StateRunning is an active recording session.
	StateRunning State = "running"

	// StatePaused is a session with timing paused.
	StatePaused State = "paused"

	// StateFinished is a completed session.
	StateFinished State = "finished"

	// StateAborted is a session whose create call failed terminally.
	StateAborted State = "aborted"
)

// ExerciseRef references a catalog exercise, or carries a free-text
// snapshot name when the catalog item is unavailable offline.
type ExerciseRef struct {
	// CatalogID is the catalog exercise identifier, if known.
	CatalogID string

	// SnapshotName is the display name captured at creation time.
	SnapshotName string
}

// SyncStatus is the persistence state of one row in a snapshot.
type SyncStatus string

const (
	// SyncPending: the backing create has not succeeded yet.
	SyncPending SyncStatus = "pending"

	// SyncSaved: the row exists on the server.
	SyncSaved SyncStatus = "saved"

	// SyncFailed: the backing create failed terminally; the row is
	// local-only and will never reach the server.
	SyncFailed SyncStatus = "failed"
)

// Set is one logged set or interval.
//
// LocalID is always present and is the stable UI key. RemoteID is
// empty until the backing create call succeeds.
type Set struct {
	LocalID  identity.LocalID
	RemoteID string

	// Sync reports whether this row reached the server.
	Sync SyncStatus

	// Order is the zero-based position at append time. Orders are
	// never renumbered on delete; gaps are acceptable.
	Order int

	Reps        *int
	WeightKg    *float64
	DurationSec *int
	DistanceM   *float64
	RPE         *float64
	Done        bool
}

// Item is one exercise instance inside a session.
type Item struct {
	LocalID  identity.LocalID
	RemoteID string

	// Sync reports whether this row reached the server.
	Sync SyncStatus

	// Order is the zero-based position at append time, never renumbered.
	Order int

	Exercise ExerciseRef
	Sets     []Set
}

// Session is a point-in-time snapshot of the session aggregate.
//
// Snapshots are deep copies; mutating one has no effect on the
// recorder's state.
type Session struct {
	// RemoteID is empty while the session create is pending.
	RemoteID string

	State     State
	Kind      string
	Title     string
	PlanID    string
	StartedAt time.Time

	// EndedAt is zero until Finish.
	EndedAt time.Time

	Items []Item
}

// Duration returns the session's elapsed time: the span from start to
// end for a finished session, start to now otherwise.
func (s Session) Duration() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if !s.EndedAt.IsZero() {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// SetPatch is a partial update to a set. Nil fields are left unchanged.
type SetPatch struct {
	Reps        *int
	WeightKg    *float64
	DurationSec *int
	DistanceM   *float64
	RPE         *float64
	Done        *bool
}

// Update is a reactive state notification emitted after each change
// to the session aggregate.
type Update struct {
	// Timestamp of the update.
	Timestamp time.Time

	// Session is the snapshot after the change.
	Session Session
}

// IntPtr returns a pointer to v. Convenience for building patches.
func IntPtr(v int) *int { return &v }

// Float64Ptr returns a pointer to v. Convenience for building patches.
func Float64Ptr(v float64) *float64 { return &v }

// BoolPtr returns a pointer to v. Convenience for building patches.
func BoolPtr(v bool) *bool { return &v }
