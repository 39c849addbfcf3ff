package workout

import (
	"fmt"
	"time"

	"trainsync/pkg/identity"
	"trainsync/pkg/rowstore"
)

// Remote write dispatchers. Every dispatcher runs on the command loop,
// increments the in-flight counter, fires the network call in its own
// goroutine, and re-enters the completion handler through the loop.
// maybeFinish is re-evaluated after every completion so a requested
// finish drains exactly when the last in-flight write resolves.

// dispatchSessionCreate issues the session's own create call.
func (r *Recorder) dispatchSessionCreate(userID string) {
	fields := rowstore.Fields{
		"user_id":    userID,
		"kind":       r.kind,
		"started_at": r.startedAt.Format(time.RFC3339),
		"state":      string(StateRunning),
	}
	if r.title != "" {
		fields["title"] = r.title
	}
	if r.planID != "" {
		fields["plan_id"] = r.planID
	}

	r.inflight++
	go func() {
		row, err := r.store.Insert(r.ctx, rowstore.Sessions, fields)
		r.complete(func() {
			r.inflight--
			if err != nil {
				r.abort(fmt.Errorf("failed to create session: %w", err))
				return
			}

			if bindErr := r.ids.Bind(r.sessionLocal, identity.RemoteID(row.ID())); bindErr != nil {
				r.abort(fmt.Errorf("failed to bind session id: %w", bindErr))
				return
			}

			if r.state == StatePending {
				r.state = StateRunning
			}

			r.logger.Info("session bound", "remote_id", row.ID())

			r.flushQueuedItems()
			r.emitUpdate()
			r.maybeFinish()
		})
	}()
}

// abort transitions to the aborted state after an unrecoverable
// failure of the session's own create. Queued child creates are
// abandoned; their items stay in local state for the UI to offer
// retry or discard.
func (r *Recorder) abort(err error) {
	r.state = StateAborted
	r.finishRequested = false

	for _, it := range r.queuedItems {
		it.phase = phaseFailed
		for _, st := range it.sets {
			st.phase = phaseFailed
		}
	}
	r.queuedItems = nil

	r.emitError(err)
	r.emitUpdate()
}

// flushQueuedItems dispatches item creates queued behind the session
// bind, in FIFO order. Items removed while queued were already
// dropped from the queue.
func (r *Recorder) flushQueuedItems() {
	queued := r.queuedItems
	r.queuedItems = nil

	for _, it := range queued {
		r.dispatchItemCreate(it)
	}
}

// dispatchItemCreate issues one item's create call. The session's
// remote id must be bound.
func (r *Recorder) dispatchItemCreate(it *itemState) {
	sessionRemote, ok := r.ids.RemoteFor(r.sessionLocal)
	if !ok {
		// Dependency ordering defect; never dispatch without a parent.
		r.emitError(fmt.Errorf("item create dispatched before session bind: %s", it.localID))
		return
	}

	it.phase = phaseInflight
	fields := rowstore.Fields{
		"session_id": string(sessionRemote),
		"order":      it.order,
	}
	if it.exercise.CatalogID != "" {
		fields["exercise_id"] = it.exercise.CatalogID
	}
	if it.exercise.SnapshotName != "" {
		fields["exercise_name"] = it.exercise.SnapshotName
	}

	r.inflight++
	go func() {
		row, err := r.store.Insert(r.ctx, rowstore.SessionItems, fields)
		r.complete(func() {
			r.inflight--
			if err != nil {
				it.phase = phaseFailed
				r.rollbackItem(it, err)
				r.maybeFinish()
				return
			}

			it.phase = phaseBound
			if bindErr := r.ids.Bind(it.localID, identity.RemoteID(row.ID())); bindErr != nil {
				r.emitError(fmt.Errorf("failed to bind item id: %w", bindErr))
				r.maybeFinish()
				return
			}

			if it.removed {
				// The user removed the item while its create was in
				// flight; compensate so no remote row is orphaned.
				r.dispatchItemDelete(it)
				r.maybeFinish()
				return
			}

			r.flushQueuedSets(it)
			r.emitUpdate()
			r.maybeFinish()
		})
	}()
}

// rollbackItem rolls back the optimistic insert of an item whose
// create failed: the item leaves local state, queued set creates are
// abandoned, and the error is surfaced. The user re-adds manually
// rather than the recorder retrying.
func (r *Recorder) rollbackItem(it *itemState, cause error) {
	if it.removed {
		// Already gone by user intent; the failed create needs no
		// compensation and no rollback.
		r.releaseItem(it)
		return
	}

	for i, existing := range r.items {
		if existing == it {
			r.items = append(r.items[:i], r.items[i+1:]...)
			break
		}
	}

	abandoned := 0
	for _, st := range it.sets {
		if st.phase == phaseQueued {
			st.phase = phaseFailed
			abandoned++
		}
	}
	if abandoned > 0 {
		r.emitError(fmt.Errorf("%w: %d queued set(s) on item %s",
			ErrOrderingViolation, abandoned, it.localID))
	}

	r.releaseItem(it)
	r.emitError(fmt.Errorf("failed to create item: %w", cause))
	r.emitUpdate()
}

// flushQueuedSets dispatches set creates queued behind an item's
// bind, in append order.
func (r *Recorder) flushQueuedSets(it *itemState) {
	for _, st := range it.sets {
		if st.phase == phaseQueued {
			r.dispatchSetCreate(it, st)
		}
	}
}

// dispatchSetCreate issues one set's create call. The owning item's
// remote id must be bound; this is the item-before-set ordering
// constraint.
func (r *Recorder) dispatchSetCreate(it *itemState, st *setState) {
	itemRemote, ok := r.ids.RemoteFor(it.localID)
	if !ok {
		r.emitError(fmt.Errorf("set create dispatched before item bind: %s", st.localID))
		return
	}

	st.phase = phaseInflight
	st.dirty = false
	sent := st.fields

	fields := sent.rowFields()
	fields["item_id"] = string(itemRemote)
	fields["order"] = st.order

	r.inflight++
	go func() {
		row, err := r.store.Insert(r.ctx, rowstore.SessionSets, fields)
		r.complete(func() {
			r.inflight--
			if err != nil {
				st.phase = phaseFailed
				r.rollbackSet(it, st, err)
				r.maybeFinish()
				return
			}

			st.phase = phaseBound
			st.saved = sent
			if bindErr := r.ids.Bind(st.localID, identity.RemoteID(row.ID())); bindErr != nil {
				r.emitError(fmt.Errorf("failed to bind set id: %w", bindErr))
				r.maybeFinish()
				return
			}

			if it.removed {
				r.dispatchSetDelete(st)
				r.maybeFinish()
				return
			}

			if st.dirty {
				// A patch landed while the create was in flight;
				// issue the coalesced follow-up now.
				st.dirty = false
				r.dispatchSetUpdate(it, st)
			}

			r.emitUpdate()
			r.maybeFinish()
		})
	}()
}

// rollbackSet rolls back the optimistic insert of a set whose create
// failed.
func (r *Recorder) rollbackSet(it *itemState, st *setState, cause error) {
	if it.removed {
		r.ids.Release(st.localID)
		return
	}

	for i, existing := range it.sets {
		if existing == st {
			it.sets = append(it.sets[:i], it.sets[i+1:]...)
			break
		}
	}

	r.ids.Release(st.localID)
	r.emitError(fmt.Errorf("failed to create set: %w", cause))
	r.emitUpdate()
}

// dispatchSetUpdate issues a remote update carrying the set's current
// payload. Updates for one set are serialized: a patch arriving while
// one is in flight sets the dirty flag and collapses into a single
// follow-up call.
func (r *Recorder) dispatchSetUpdate(it *itemState, st *setState) {
	remote, ok := r.ids.RemoteFor(st.localID)
	if !ok {
		r.emitError(fmt.Errorf("set update dispatched before set bind: %s", st.localID))
		return
	}

	st.updating = true
	sent := st.fields

	r.inflight++
	go func() {
		_, err := r.store.Update(r.ctx, rowstore.SessionSets, string(remote), sent.rowFields())
		r.complete(func() {
			r.inflight--
			st.updating = false
			if err != nil {
				// Restore the last server-confirmed payload so the
				// visible state matches what is actually persisted.
				st.fields = st.saved
				st.dirty = false
				r.emitError(fmt.Errorf("failed to update set: %w", err))
				r.emitUpdate()
				r.maybeFinish()
				return
			}

			st.saved = sent
			if st.dirty {
				st.dirty = false
				r.dispatchSetUpdate(it, st)
			}
			r.maybeFinish()
		})
	}()
}

// dispatchItemDelete issues the compensating delete for an item whose
// row exists remotely but which is gone from local state.
func (r *Recorder) dispatchItemDelete(it *itemState) {
	remote, ok := r.ids.RemoteFor(it.localID)
	if !ok {
		return
	}

	r.inflight++
	go func() {
		err := r.store.Delete(r.ctx, rowstore.SessionItems, string(remote))
		r.complete(func() {
			r.inflight--
			if err != nil {
				r.emitError(fmt.Errorf("failed to delete item: %w", err))
				r.maybeFinish()
				return
			}

			r.logger.Debug("item delete compensated", "remote_id", remote)
			r.releaseItem(it)
			r.maybeFinish()
		})
	}()
}

// dispatchSetDelete issues the compensating delete for a set bound
// after its owning item was removed.
func (r *Recorder) dispatchSetDelete(st *setState) {
	remote, ok := r.ids.RemoteFor(st.localID)
	if !ok {
		return
	}

	r.inflight++
	go func() {
		err := r.store.Delete(r.ctx, rowstore.SessionSets, string(remote))
		r.complete(func() {
			r.inflight--
			if err != nil {
				r.emitError(fmt.Errorf("failed to delete set: %w", err))
				r.maybeFinish()
				return
			}

			r.ids.Release(st.localID)
			r.maybeFinish()
		})
	}()
}

// maybeFinish dispatches the remote finish update once a requested
// finish has drained: the session is bound, nothing is queued, and
// no child write is in flight.
func (r *Recorder) maybeFinish() {
	if !r.finishRequested {
		return
	}

	sessionRemote, ok := r.ids.RemoteFor(r.sessionLocal)
	if !ok {
		// Still pending; the session-create completion re-checks.
		return
	}

	if r.inflight > 0 || len(r.queuedItems) > 0 {
		return
	}

	r.finishRequested = false
	r.dispatchFinishUpdate(string(sessionRemote))
}

// dispatchFinishUpdate persists the finished session record.
func (r *Recorder) dispatchFinishUpdate(sessionRemote string) {
	fields := rowstore.Fields{
		"state":        string(StateFinished),
		"ended_at":     r.endedAt.Format(time.RFC3339),
		"duration_sec": int(r.endedAt.Sub(r.startedAt).Seconds()),
	}

	r.inflight++
	go func() {
		_, err := r.store.Update(r.ctx, rowstore.Sessions, sessionRemote, fields)
		r.complete(func() {
			r.inflight--
			if err != nil {
				// Locally the workout is over, but the persisted
				// record is not finished; revert so the user can
				// retry Finish. The recorded end time is kept.
				r.state = r.priorState
				r.emitError(fmt.Errorf("failed to finish session: %w", err))
				r.emitUpdate()
				return
			}

			r.logger.Info("session finished",
				"remote_id", sessionRemote,
				"duration_sec", fields["duration_sec"])
			r.emitUpdate()
		})
	}()
}
