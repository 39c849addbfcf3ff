package planner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trainsync/pkg/logger"
	"trainsync/pkg/rowstore"
)

// Config contains planner store configuration.
type Config struct {
	// Store is the remote persistence service.
	Store rowstore.Store

	// User yields the active user's identity.
	User rowstore.UserContext

	// WindowDays is the half-width of the load window. Default: 45.
	WindowDays int
}

// Store synchronizes planned sessions between the remote row store
// and a day-keyed in-memory index.
//
// The index is owned exclusively by this store. All methods are safe
// for concurrent use; no lock is held across a network call.
type Store struct {
	store      rowstore.Store
	user       rowstore.UserContext
	logger     logger.Logger
	windowDays int

	mu    sync.RWMutex
	index map[string][]Plan
}

// New creates a planner store with an empty index.
func New(cfg Config, log logger.Logger) *Store {
	if cfg.WindowDays == 0 {
		cfg.WindowDays = 45
	}

	return &Store{
		store:      cfg.Store,
		user:       cfg.User,
		logger:     log,
		windowDays: cfg.WindowDays,
		index:      make(map[string][]Plan),
	}
}

// LoadRange fetches all planned sessions within ±WindowDays of the
// given date and replaces the in-memory index wholesale.
//
// On failure the previous index is left untouched; the error is
// reported and never retried automatically.
func (s *Store) LoadRange(ctx context.Context, around time.Time) error {
	userID, err := s.user.CurrentUserID()
	if err != nil {
		return err
	}

	from := DayKey(around.AddDate(0, 0, -s.windowDays))
	to := DayKey(around.AddDate(0, 0, s.windowDays))

	rows, err := s.store.Select(ctx, rowstore.PlannedSessions, rowstore.Filter{
		"user_id":  userID,
		"date_gte": from,
		"date_lte": to,
	})
	if err != nil {
		return fmt.Errorf("failed to load planned sessions: %w", err)
	}

	fresh := make(map[string][]Plan)
	for _, row := range rows {
		plan := planFromRow(row)
		if plan.Date == "" {
			s.logger.Warn("skipping planned session without date", "id", plan.ID)
			continue
		}
		fresh[plan.Date] = append(fresh[plan.Date], plan)
	}
	for key := range fresh {
		sortBucket(fresh[key])
	}

	s.mu.Lock()
	s.index = fresh
	s.mu.Unlock()

	s.logger.Info("planned sessions loaded",
		"from", from,
		"to", to,
		"count", len(rows))

	return nil
}

// Upsert persists the plan: an insert when its ID is absent, an
// update otherwise. On success the index is patched at the affected
// day key; any stale entry with the same id is removed first. On
// failure the index is left unchanged and the caller must roll back
// its own optimistic UI state.
func (s *Store) Upsert(ctx context.Context, plan Plan) (Plan, error) {
	userID, err := s.user.CurrentUserID()
	if err != nil {
		return Plan{}, err
	}

	if plan.Date == "" {
		return Plan{}, ErrNoDate
	}
	if _, parseErr := time.Parse(DayKeyLayout, plan.Date); parseErr != nil {
		return Plan{}, fmt.Errorf("%w: %s", ErrBadDayKey, plan.Date)
	}

	fields := planFields(plan, userID)

	var row rowstore.Row
	if plan.ID == "" {
		row, err = s.store.Insert(ctx, rowstore.PlannedSessions, fields)
	} else {
		row, err = s.store.Update(ctx, rowstore.PlannedSessions, plan.ID, fields)
	}
	if err != nil {
		return Plan{}, fmt.Errorf("failed to upsert planned session: %w", err)
	}

	saved := plan
	saved.ID = row.ID()
	if saved.ID == "" {
		saved.ID = plan.ID
	}

	s.mu.Lock()
	s.stripLocked(saved.ID)
	s.insertLocked(saved)
	s.mu.Unlock()

	s.logger.Debug("planned session upserted",
		"id", saved.ID,
		"date", saved.Date)

	return saved, nil
}

// Delete removes the plan remotely, then strips its id from every
// day-key bucket. A plan should appear under exactly one day key, but
// the removal does not assume that invariant is unbroken.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.user.CurrentUserID(); err != nil {
		return err
	}
	if id == "" {
		return ErrNoID
	}

	if err := s.store.Delete(ctx, rowstore.PlannedSessions, id); err != nil {
		return fmt.Errorf("failed to delete planned session: %w", err)
	}

	s.mu.Lock()
	s.stripLocked(id)
	s.mu.Unlock()

	s.logger.Debug("planned session deleted", "id", id)
	return nil
}

// SessionsFor returns the plans for the given day key, time-sorted
// with untimed entries last. An absent day key yields an empty
// sequence, never an error.
func (s *Store) SessionsFor(dayKey string) []Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.index[dayKey]
	result := make([]Plan, len(bucket))
	copy(result, bucket)
	return result
}

// Days returns the day keys that currently have at least one plan,
// sorted ascending.
func (s *Store) Days() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days := make([]string, 0, len(s.index))
	for key := range s.index {
		days = append(days, key)
	}
	sort.Strings(days)
	return days
}

// stripLocked removes the id from every bucket. Caller holds the lock.
func (s *Store) stripLocked(id string) {
	for key, bucket := range s.index {
		filtered := bucket[:0]
		for _, plan := range bucket {
			if plan.ID != id {
				filtered = append(filtered, plan)
			}
		}
		if len(filtered) == 0 {
			delete(s.index, key)
		} else {
			s.index[key] = filtered
		}
	}
}

// insertLocked adds the plan to its day bucket in sorted position.
// Caller holds the lock.
func (s *Store) insertLocked(plan Plan) {
	bucket := append(s.index[plan.Date], plan)
	sortBucket(bucket)
	s.index[plan.Date] = bucket
}

// sortBucket orders a day bucket by time ascending, untimed last.
func sortBucket(bucket []Plan) {
	sort.SliceStable(bucket, func(i, j int) bool {
		return before(bucket[i], bucket[j])
	})
}

// planFields converts a plan to its row-store field map.
func planFields(plan Plan, userID string) rowstore.Fields {
	fields := rowstore.Fields{
		"user_id": userID,
		"date":    plan.Date,
		"kind":    plan.Kind,
		"name":    plan.Name,
	}
	if plan.Time != "" {
		fields["time"] = plan.Time
	}
	if plan.DurationMinutes > 0 {
		fields["duration_min"] = plan.DurationMinutes
	}
	if plan.Note != "" {
		fields["note"] = plan.Note
	}
	if len(plan.Meta) > 0 {
		fields["meta"] = plan.Meta
	}
	return fields
}

// planFromRow converts a row back into a plan.
func planFromRow(row rowstore.Row) Plan {
	plan := Plan{
		ID:   row.ID(),
		Date: row.String("date"),
		Time: row.String("time"),
		Kind: row.String("kind"),
		Name: row.String("name"),
		Note: row.String("note"),
	}

	if minutes, ok := row.Int("duration_min"); ok {
		plan.DurationMinutes = minutes
	}

	if raw, ok := row["meta"].(map[string]any); ok {
		meta := make(map[string]string, len(raw))
		for k, v := range raw {
			meta[k] = fmt.Sprintf("%v", v)
		}
		plan.Meta = meta
	} else if typed, ok := row["meta"].(map[string]string); ok {
		meta := make(map[string]string, len(typed))
		for k, v := range typed {
			meta[k] = v
		}
		plan.Meta = meta
	}

	return plan
}
