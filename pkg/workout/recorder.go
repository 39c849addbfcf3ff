package workout

import (
	"context"
	"sync"
	"time"

	"trainsync/pkg/identity"
	"trainsync/pkg/logger"
	"trainsync/pkg/rowstore"
)

// createPhase tracks a child row's progress through the dependency-
// ordered creation pipeline.
type createPhase int

const (
	// phaseQueued: waiting for the parent's server id, not yet dispatched.
	phaseQueued createPhase = iota

	// phaseInflight: remote create dispatched, unresolved.
	phaseInflight

	// phaseBound: server id known.
	phaseBound

	// phaseFailed: remote create failed terminally.
	phaseFailed
)

// setFields holds the mutable payload of a set. Patches replace the
// pointers, so a value copy is a stable snapshot.
type setFields struct {
	reps        *int
	weightKg    *float64
	durationSec *int
	distanceM   *float64
	rpe         *float64
	done        bool
}

// rowFields converts the payload to a row-store field map, omitting
// absent optionals.
func (f setFields) rowFields() rowstore.Fields {
	fields := rowstore.Fields{"done": f.done}
	if f.reps != nil {
		fields["reps"] = *f.reps
	}
	if f.weightKg != nil {
		fields["weight_kg"] = *f.weightKg
	}
	if f.durationSec != nil {
		fields["duration_sec"] = *f.durationSec
	}
	if f.distanceM != nil {
		fields["distance_m"] = *f.distanceM
	}
	if f.rpe != nil {
		fields["rpe"] = *f.rpe
	}
	return fields
}

// setState is the recorder's internal record of one set.
type setState struct {
	localID identity.LocalID
	order   int
	fields  setFields

	// saved is the payload last confirmed by the server, used to roll
	// back a failed update.
	saved setFields

	phase createPhase

	// dirty marks a patch that arrived while a create or update for
	// this set was in flight; it is coalesced into one follow-up write.
	dirty bool

	// updating marks an in-flight remote update, serializing updates
	// per set.
	updating bool
}

// itemState is the recorder's internal record of one exercise instance.
type itemState struct {
	localID  identity.LocalID
	order    int
	exercise ExerciseRef
	sets     []*setState
	phase    createPhase

	// removed marks an item deleted locally while its create was
	// still queued or in flight; the create's completion handler
	// compensates with a remote delete.
	removed bool
}

// RecorderConfig contains recorder configuration.
type RecorderConfig struct {
	// Store is the remote persistence service.
	Store rowstore.Store

	// User yields the active user's identity.
	User rowstore.UserContext

	// UpdateBuffer is the capacity of the Updates channel. Default: 16.
	UpdateBuffer int
}

// Recorder owns one live session aggregate and sequences its remote
// writes.
//
// All session state is owned by a single command loop goroutine.
// Public methods enqueue intents onto the loop; remote calls run in
// their own goroutines and re-enter their completion handlers through
// the same loop. No lock is ever held across a network call.
type Recorder struct {
	store  rowstore.Store
	user   rowstore.UserContext
	logger logger.Logger
	ids    *identity.Map

	commands chan func()
	stopChan chan struct{}
	stopOnce sync.Once

	updates chan Update
	errs    chan error

	// State below is owned exclusively by the command loop.
	ctx             context.Context
	started         bool
	state           State
	kind            string
	title           string
	planID          string
	startedAt       time.Time
	endedAt         time.Time
	sessionLocal    identity.LocalID
	items           []*itemState
	queuedItems     []*itemState
	nextItemOrder   int
	inflight        int
	finishRequested bool
	priorState      State
}

// NewRecorder creates a recorder and starts its command loop.
//
// The caller must Close the recorder when done with it.
func NewRecorder(cfg RecorderConfig, log logger.Logger) *Recorder {
	if cfg.UpdateBuffer == 0 {
		cfg.UpdateBuffer = 16
	}

	r := &Recorder{
		store:    cfg.Store,
		user:     cfg.User,
		logger:   log,
		ids:      identity.NewMap(),
		commands: make(chan func(), 16),
		stopChan: make(chan struct{}),
		updates:  make(chan Update, cfg.UpdateBuffer),
		errs:     make(chan error, cfg.UpdateBuffer),
	}

	go r.run()

	return r
}

// run is the command loop. It executes intents and completion
// handlers one at a time in arrival order.
func (r *Recorder) run() {
	defer close(r.updates)
	defer close(r.errs)

	for {
		select {
		case fn := <-r.commands:
			fn()
		case <-r.stopChan:
			return
		}
	}
}

// do enqueues fn onto the command loop.
func (r *Recorder) do(fn func()) error {
	select {
	case r.commands <- fn:
		return nil
	case <-r.stopChan:
		return ErrRecorderClosed
	}
}

// call enqueues fn and waits for its result.
func (r *Recorder) call(fn func() error) error {
	done := make(chan error, 1)
	if err := r.do(func() { done <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-r.stopChan:
		return ErrRecorderClosed
	}
}

// complete re-enters a completion handler onto the command loop.
// Completions arriving after Close are dropped.
func (r *Recorder) complete(fn func()) {
	if err := r.do(fn); err != nil {
		r.logger.Warn("dropping remote completion after close")
	}
}

// Start allocates the in-memory session and issues the remote create
// asynchronously.
//
// The session is immediately usable: item and set intents are
// accepted while the create is pending and their remote writes are
// queued behind the session's server id. If the create fails, the
// session transitions to aborted and the error is surfaced on Errs.
func (r *Recorder) Start(ctx context.Context, kind, title, planID string) error {
	userID, err := r.user.CurrentUserID()
	if err != nil {
		return err
	}

	return r.call(func() error {
		if r.started {
			return ErrAlreadyStarted
		}

		r.started = true
		r.ctx = ctx
		r.state = StatePending
		r.kind = kind
		r.title = title
		r.planID = planID
		r.startedAt = time.Now()
		r.sessionLocal = r.ids.AllocateLocal()

		r.logger.Info("session started",
			"kind", kind,
			"title", title,
			"plan_id", planID)

		r.dispatchSessionCreate(userID)
		r.emitUpdate()
		return nil
	})
}

// AddExercise appends an exercise item with a fresh local id.
//
// The item appears in the session immediately; its remote create is
// issued once the session's server id is available, immediately if
// already bound. One empty set (order 0) is auto-created for the
// item, queued behind the item's own create.
func (r *Recorder) AddExercise(ref ExerciseRef) (Item, error) {
	if _, err := r.user.CurrentUserID(); err != nil {
		return Item{}, err
	}

	var out Item
	err := r.call(func() error {
		if err := r.ensureActive(); err != nil {
			return err
		}

		it := &itemState{
			localID:  r.ids.AllocateLocal(),
			order:    r.nextItemOrder,
			exercise: ref,
		}
		r.nextItemOrder++

		it.sets = append(it.sets, &setState{
			localID: r.ids.AllocateLocal(),
			order:   0,
			phase:   phaseQueued,
		})

		r.items = append(r.items, it)

		if _, bound := r.ids.RemoteFor(r.sessionLocal); bound {
			r.dispatchItemCreate(it)
		} else {
			it.phase = phaseQueued
			r.queuedItems = append(r.queuedItems, it)
		}

		out = r.snapshotItem(it)
		r.emitUpdate()
		return nil
	})
	return out, err
}

// AddSet appends a new set to the named item.
//
// The set's remote create is queued behind the owning item's create
// if that has not yet resolved.
func (r *Recorder) AddSet(itemLocalID identity.LocalID) (Set, error) {
	if _, err := r.user.CurrentUserID(); err != nil {
		return Set{}, err
	}

	var out Set
	err := r.call(func() error {
		if err := r.ensureActive(); err != nil {
			return err
		}

		it := r.findItem(itemLocalID)
		if it == nil {
			return ErrNoSuchItem
		}

		st := &setState{
			localID: r.ids.AllocateLocal(),
			order:   len(it.sets),
			phase:   phaseQueued,
		}
		it.sets = append(it.sets, st)

		if it.phase == phaseBound {
			r.dispatchSetCreate(it, st)
		}

		out = r.snapshotSet(st)
		r.emitUpdate()
		return nil
	})
	return out, err
}

// UpdateSet applies a partial update to the named set.
//
// The in-memory patch is applied immediately. If the set's remote
// create is still pending, the patch is coalesced into the create
// body instead of issued as a separate call; successive patches
// during an in-flight write collapse into one follow-up update
// (last write wins).
func (r *Recorder) UpdateSet(setLocalID identity.LocalID, patch SetPatch) error {
	if _, err := r.user.CurrentUserID(); err != nil {
		return err
	}

	return r.call(func() error {
		if err := r.ensureActive(); err != nil {
			return err
		}

		it, st := r.findSet(setLocalID)
		if st == nil {
			return ErrNoSuchSet
		}

		applyPatch(&st.fields, patch)

		switch st.phase {
		case phaseQueued:
			// The create body is built at dispatch time, so the
			// patch rides along with it.
		case phaseInflight:
			st.dirty = true
		case phaseBound:
			if st.updating {
				st.dirty = true
			} else {
				r.dispatchSetUpdate(it, st)
			}
		case phaseFailed:
			return ErrNoSuchSet
		}

		r.emitUpdate()
		return nil
	})
}

// RemoveItem removes the named item from the session immediately.
//
// If a remote create for the item is still in flight, its eventual
// success is compensated with a remote delete; a failed create needs
// no compensation.
func (r *Recorder) RemoveItem(itemLocalID identity.LocalID) error {
	if _, err := r.user.CurrentUserID(); err != nil {
		return err
	}

	return r.call(func() error {
		if err := r.ensureActive(); err != nil {
			return err
		}

		idx := -1
		for i, it := range r.items {
			if it.localID == itemLocalID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNoSuchItem
		}

		it := r.items[idx]
		r.items = append(r.items[:idx], r.items[idx+1:]...)
		it.removed = true

		switch it.phase {
		case phaseQueued:
			r.unqueueItem(it)
			r.releaseItem(it)
		case phaseInflight:
			// The create's completion handler issues the
			// compensating delete.
		case phaseBound:
			r.dispatchItemDelete(it)
		case phaseFailed:
			// Nothing was persisted.
		}

		r.logger.Debug("item removed", "local_id", it.localID)
		r.emitUpdate()
		return nil
	})
}

// Pause pauses a running session.
func (r *Recorder) Pause() error {
	return r.call(func() error {
		if r.state != StateRunning {
			return ErrNotRunning
		}
		r.state = StatePaused
		r.emitUpdate()
		return nil
	})
}

// Resume resumes a paused session.
func (r *Recorder) Resume() error {
	return r.call(func() error {
		if r.state != StatePaused {
			return ErrNotRunning
		}
		r.state = StateRunning
		r.emitUpdate()
		return nil
	})
}

// Finish marks the session finished and returns its snapshot.
//
// The local transition is immediate, but the remote finish update is
// dispatched only after every in-flight item and set write has
// resolved, so a persisted "finished" session never has orphaned
// in-flight children. Finishing does not cancel in-flight writes.
// If the finish write itself fails, the session reverts to its prior
// state locally so the user can retry; the recorded end time is kept.
func (r *Recorder) Finish() (Session, error) {
	if _, err := r.user.CurrentUserID(); err != nil {
		return Session{}, err
	}

	var out Session
	err := r.call(func() error {
		switch r.state {
		case StateAborted:
			return ErrSessionAborted
		case StateFinished:
			// Already finished or draining; idempotent.
			out = r.snapshot()
			return nil
		case StatePending, StateRunning, StatePaused:
		default:
			return ErrNotRunning
		}

		if r.state == StatePending {
			// The session binds before any child write drains, so
			// a failed finish write lands back in running.
			r.priorState = StateRunning
		} else {
			r.priorState = r.state
		}

		if r.endedAt.IsZero() {
			r.endedAt = time.Now()
		}
		r.state = StateFinished
		r.finishRequested = true

		r.logger.Info("session finishing",
			"duration", r.endedAt.Sub(r.startedAt),
			"inflight", r.inflight)

		r.emitUpdate()
		r.maybeFinish()
		out = r.snapshot()
		return nil
	})
	return out, err
}

// Snapshot returns a deep copy of the current session state.
func (r *Recorder) Snapshot() (Session, error) {
	var out Session
	err := r.call(func() error {
		out = r.snapshot()
		return nil
	})
	return out, err
}

// Updates returns the channel of reactive state notifications.
//
// The channel is closed when the recorder is closed. Updates are
// dropped, not blocked on, when the consumer falls behind.
func (r *Recorder) Updates() <-chan Update {
	return r.updates
}

// Errs returns the channel of surfaced asynchronous failures.
func (r *Recorder) Errs() <-chan error {
	return r.errs
}

// Close stops the command loop. In-flight remote calls keep running
// but their completions are dropped.
func (r *Recorder) Close() error {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
	return nil
}

// ensureActive checks the session accepts recording intents.
func (r *Recorder) ensureActive() error {
	if !r.started {
		return ErrNotRunning
	}
	switch r.state {
	case StatePending, StateRunning, StatePaused:
		return nil
	case StateAborted:
		return ErrSessionAborted
	default:
		return ErrNotRunning
	}
}

// findItem returns the item with the given local id, or nil.
func (r *Recorder) findItem(localID identity.LocalID) *itemState {
	for _, it := range r.items {
		if it.localID == localID {
			return it
		}
	}
	return nil
}

// findSet returns the set with the given local id and its owning item.
func (r *Recorder) findSet(localID identity.LocalID) (*itemState, *setState) {
	for _, it := range r.items {
		for _, st := range it.sets {
			if st.localID == localID {
				return it, st
			}
		}
	}
	return nil, nil
}

// unqueueItem removes an item from the session-bind queue.
func (r *Recorder) unqueueItem(it *itemState) {
	for i, queued := range r.queuedItems {
		if queued == it {
			r.queuedItems = append(r.queuedItems[:i], r.queuedItems[i+1:]...)
			return
		}
	}
}

// releaseItem drops the identity mappings of an item and its sets.
func (r *Recorder) releaseItem(it *itemState) {
	for _, st := range it.sets {
		r.ids.Release(st.localID)
	}
	r.ids.Release(it.localID)
}

// applyPatch merges non-nil patch fields into the payload.
func applyPatch(fields *setFields, patch SetPatch) {
	if patch.Reps != nil {
		fields.reps = patch.Reps
	}
	if patch.WeightKg != nil {
		fields.weightKg = patch.WeightKg
	}
	if patch.DurationSec != nil {
		fields.durationSec = patch.DurationSec
	}
	if patch.DistanceM != nil {
		fields.distanceM = patch.DistanceM
	}
	if patch.RPE != nil {
		fields.rpe = patch.RPE
	}
	if patch.Done != nil {
		fields.done = *patch.Done
	}
}

// snapshot builds a deep copy of the session aggregate.
// Must run on the command loop.
func (r *Recorder) snapshot() Session {
	sess := Session{
		State:     r.state,
		Kind:      r.kind,
		Title:     r.title,
		PlanID:    r.planID,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
		Items:     make([]Item, 0, len(r.items)),
	}

	if remote, ok := r.ids.RemoteFor(r.sessionLocal); ok {
		sess.RemoteID = string(remote)
	}

	for _, it := range r.items {
		sess.Items = append(sess.Items, r.snapshotItem(it))
	}

	return sess
}

// snapshotItem builds a copy of one item.
func (r *Recorder) snapshotItem(it *itemState) Item {
	item := Item{
		LocalID:  it.localID,
		Order:    it.order,
		Exercise: it.exercise,
		Sync:     syncStatus(it.phase),
		Sets:     make([]Set, 0, len(it.sets)),
	}

	if remote, ok := r.ids.RemoteFor(it.localID); ok {
		item.RemoteID = string(remote)
	}

	for _, st := range it.sets {
		item.Sets = append(item.Sets, r.snapshotSet(st))
	}

	return item
}

// snapshotSet builds a copy of one set.
func (r *Recorder) snapshotSet(st *setState) Set {
	set := Set{
		LocalID:     st.localID,
		Order:       st.order,
		Sync:        syncStatus(st.phase),
		Reps:        st.fields.reps,
		WeightKg:    st.fields.weightKg,
		DurationSec: st.fields.durationSec,
		DistanceM:   st.fields.distanceM,
		RPE:         st.fields.rpe,
		Done:        st.fields.done,
	}

	if remote, ok := r.ids.RemoteFor(st.localID); ok {
		set.RemoteID = string(remote)
	}

	return set
}

// syncStatus maps a create phase to its snapshot-visible status.
func syncStatus(phase createPhase) SyncStatus {
	switch phase {
	case phaseBound:
		return SyncSaved
	case phaseFailed:
		return SyncFailed
	default:
		return SyncPending
	}
}

// emitUpdate sends a snapshot to the updates channel without blocking.
func (r *Recorder) emitUpdate() {
	update := Update{
		Timestamp: time.Now(),
		Session:   r.snapshot(),
	}

	select {
	case r.updates <- update:
	default:
		r.logger.Debug("updates channel full, dropping update")
	}
}

// emitError surfaces an asynchronous failure without blocking.
func (r *Recorder) emitError(err error) {
	r.logger.Error("remote operation failed", "error", err)

	select {
	case r.errs <- err:
	default:
		r.logger.Warn("errors channel full, dropping error", "error", err)
	}
}
