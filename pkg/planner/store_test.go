package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"trainsync/pkg/logger"
	"trainsync/pkg/rowstore"
)

// failingStore wraps a Store and fails selected operations.
type failingStore struct {
	rowstore.Store
	failSelect bool
	failUpdate bool
	failInsert bool
}

func (f *failingStore) Select(ctx context.Context, collection string, filter rowstore.Filter) ([]rowstore.Row, error) {
	if f.failSelect {
		return nil, errors.New("select unavailable")
	}
	return f.Store.Select(ctx, collection, filter)
}

func (f *failingStore) Insert(ctx context.Context, collection string, fields rowstore.Fields) (rowstore.Row, error) {
	if f.failInsert {
		return nil, rowstore.ErrWriteFailed
	}
	return f.Store.Insert(ctx, collection, fields)
}

func (f *failingStore) Update(ctx context.Context, collection, id string, fields rowstore.Fields) (rowstore.Row, error) {
	if f.failUpdate {
		return nil, rowstore.ErrWriteFailed
	}
	return f.Store.Update(ctx, collection, id, fields)
}

func newTestStore(t *testing.T) (*Store, *failingStore) {
	t.Helper()
	backing := &failingStore{Store: rowstore.NewMemory()}
	s := New(Config{
		Store: backing,
		User:  rowstore.StaticUser("user-1"),
	}, logger.Noop())
	return s, backing
}

func seedPlan(t *testing.T, s *Store, plan Plan) Plan {
	t.Helper()
	saved, err := s.Upsert(context.Background(), plan)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if saved.ID == "" {
		t.Fatal("Upsert() returned plan without id")
	}
	return saved
}

func TestLoadRangeOrdering(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	around := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	d1 := DayKey(around)
	d2 := DayKey(around.AddDate(0, 0, 1))
	d3 := DayKey(around.AddDate(0, 0, 2))

	seedPlan(t, s, Plan{Date: d1, Time: "09:00", Kind: "strength", Name: "Push"})
	seedPlan(t, s, Plan{Date: d1, Time: "07:30", Kind: "cardio", Name: "Intervals"})
	seedPlan(t, s, Plan{Date: d2, Kind: "mobility", Name: "Stretch"})

	// Reload from scratch to exercise the wholesale rebuild.
	if err := s.LoadRange(ctx, around); err != nil {
		t.Fatalf("LoadRange() error = %v", err)
	}

	day1 := s.SessionsFor(d1)
	if len(day1) != 2 {
		t.Fatalf("SessionsFor(%s) = %d plans, want 2", d1, len(day1))
	}
	if day1[0].Time != "07:30" || day1[1].Time != "09:00" {
		t.Errorf("day bucket order = [%s, %s], want [07:30, 09:00]", day1[0].Time, day1[1].Time)
	}

	day2 := s.SessionsFor(d2)
	if len(day2) != 1 || day2[0].Name != "Stretch" {
		t.Errorf("SessionsFor(%s) = %v, want the untimed entry", d2, day2)
	}

	if got := s.SessionsFor(d3); len(got) != 0 {
		t.Errorf("SessionsFor(%s) = %v, want empty", d3, got)
	}
}

func TestUntimedSortsLast(t *testing.T) {
	s, _ := newTestStore(t)
	day := "2025-03-10"

	seedPlan(t, s, Plan{Date: day, Kind: "mobility", Name: "Stretch"})
	seedPlan(t, s, Plan{Date: day, Time: "18:00", Kind: "strength", Name: "Pull"})

	bucket := s.SessionsFor(day)
	if len(bucket) != 2 {
		t.Fatalf("bucket size = %d, want 2", len(bucket))
	}
	if bucket[0].Name != "Pull" || bucket[1].Name != "Stretch" {
		t.Errorf("bucket order = [%s, %s], want timed first", bucket[0].Name, bucket[1].Name)
	}
}

func TestLoadRangeHonorsWindow(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	around := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	inside := DayKey(around.AddDate(0, 0, 44))
	outside := DayKey(around.AddDate(0, 0, 46))

	seedPlan(t, s, Plan{Date: inside, Kind: "strength", Name: "In"})
	seedPlan(t, s, Plan{Date: outside, Kind: "strength", Name: "Out"})

	if err := s.LoadRange(ctx, around); err != nil {
		t.Fatalf("LoadRange() error = %v", err)
	}

	if got := s.SessionsFor(inside); len(got) != 1 {
		t.Errorf("SessionsFor(inside) = %d plans, want 1", len(got))
	}
	if got := s.SessionsFor(outside); len(got) != 0 {
		t.Errorf("SessionsFor(outside) = %d plans, want 0 after windowed reload", len(got))
	}
}

func TestLoadRangeFailureKeepsIndex(t *testing.T) {
	s, backing := newTestStore(t)
	ctx := context.Background()

	day := "2025-03-10"
	seedPlan(t, s, Plan{Date: day, Time: "08:00", Kind: "strength", Name: "Push"})

	backing.failSelect = true
	err := s.LoadRange(ctx, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("LoadRange() succeeded with failing backend")
	}

	// No partial overwrite: the previous index is intact.
	if got := s.SessionsFor(day); len(got) != 1 {
		t.Errorf("SessionsFor() = %d plans after failed reload, want 1", len(got))
	}
}

func TestUpsertPatchesInPlace(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	day := "2025-03-10"

	seedPlan(t, s, Plan{Date: day, Time: "07:00", Kind: "cardio", Name: "Row"})
	target := seedPlan(t, s, Plan{Date: day, Time: "08:00", Kind: "strength", Name: "Push", DurationMinutes: 45})
	seedPlan(t, s, Plan{Date: day, Time: "09:00", Kind: "mobility", Name: "Stretch"})

	target.DurationMinutes = 60
	updated, err := s.Upsert(ctx, target)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if updated.ID != target.ID {
		t.Errorf("Upsert() changed id: %s -> %s", target.ID, updated.ID)
	}

	bucket := s.SessionsFor(day)
	if len(bucket) != 3 {
		t.Fatalf("bucket size = %d after in-place patch, want 3", len(bucket))
	}

	seen := make(map[string]int)
	for _, plan := range bucket {
		seen[plan.ID]++
		if plan.ID == target.ID && plan.DurationMinutes != 60 {
			t.Errorf("patched plan DurationMinutes = %d, want 60", plan.DurationMinutes)
		}
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("id %s appears %d times, want 1", id, count)
		}
	}
}

func TestUpsertMovesAcrossDays(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	plan := seedPlan(t, s, Plan{Date: "2025-03-10", Time: "08:00", Kind: "strength", Name: "Push"})

	plan.Date = "2025-03-11"
	if _, err := s.Upsert(ctx, plan); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if got := s.SessionsFor("2025-03-10"); len(got) != 0 {
		t.Errorf("stale bucket still has %d plans", len(got))
	}
	if got := s.SessionsFor("2025-03-11"); len(got) != 1 {
		t.Errorf("new bucket has %d plans, want 1", len(got))
	}
}

func TestUpsertFailureLeavesIndex(t *testing.T) {
	s, backing := newTestStore(t)
	ctx := context.Background()
	day := "2025-03-10"

	plan := seedPlan(t, s, Plan{Date: day, Time: "08:00", Kind: "strength", Name: "Push", DurationMinutes: 45})

	backing.failUpdate = true
	plan.DurationMinutes = 90
	if _, err := s.Upsert(ctx, plan); !errors.Is(err, rowstore.ErrWriteFailed) {
		t.Fatalf("Upsert() error = %v, want ErrWriteFailed", err)
	}

	bucket := s.SessionsFor(day)
	if len(bucket) != 1 || bucket[0].DurationMinutes != 45 {
		t.Errorf("index changed after failed upsert: %+v", bucket)
	}
}

func TestUpsertValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, Plan{Kind: "strength"}); !errors.Is(err, ErrNoDate) {
		t.Errorf("Upsert(no date) error = %v, want ErrNoDate", err)
	}
	if _, err := s.Upsert(ctx, Plan{Date: "10/03/2025"}); !errors.Is(err, ErrBadDayKey) {
		t.Errorf("Upsert(bad key) error = %v, want ErrBadDayKey", err)
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	day := "2025-03-10"

	plan := seedPlan(t, s, Plan{Date: day, Time: "08:00", Kind: "strength", Name: "Push"})
	seedPlan(t, s, Plan{Date: day, Time: "09:00", Kind: "cardio", Name: "Run"})

	if err := s.Delete(ctx, plan.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	bucket := s.SessionsFor(day)
	if len(bucket) != 1 || bucket[0].ID == plan.ID {
		t.Errorf("bucket after delete = %+v", bucket)
	}

	// Deleting again is harmless: the remote treats absence as
	// success and the index has nothing to strip.
	if err := s.Delete(ctx, plan.ID); err != nil {
		t.Errorf("repeat Delete() error = %v", err)
	}

	if err := s.Delete(ctx, ""); !errors.Is(err, ErrNoID) {
		t.Errorf("Delete(empty) error = %v, want ErrNoID", err)
	}
}

func TestRequiresAuth(t *testing.T) {
	backing := rowstore.NewMemory()
	s := New(Config{
		Store: backing,
		User:  rowstore.StaticUser(""),
	}, logger.Noop())
	ctx := context.Background()

	if err := s.LoadRange(ctx, time.Now()); !errors.Is(err, rowstore.ErrNotAuthenticated) {
		t.Errorf("LoadRange() error = %v, want ErrNotAuthenticated", err)
	}
	if _, err := s.Upsert(ctx, Plan{Date: "2025-03-10"}); !errors.Is(err, rowstore.ErrNotAuthenticated) {
		t.Errorf("Upsert() error = %v, want ErrNotAuthenticated", err)
	}
	if err := s.Delete(ctx, "p1"); !errors.Is(err, rowstore.ErrNotAuthenticated) {
		t.Errorf("Delete() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	seedPlan(t, s, Plan{
		Date: "2025-03-10",
		Kind: "strength",
		Name: "Push",
		Meta: map[string]string{"coach": "ael", "block": "3"},
	})

	if err := s.LoadRange(ctx, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("LoadRange() error = %v", err)
	}

	bucket := s.SessionsFor("2025-03-10")
	if len(bucket) != 1 {
		t.Fatalf("bucket size = %d, want 1", len(bucket))
	}
	if bucket[0].Meta["coach"] != "ael" || bucket[0].Meta["block"] != "3" {
		t.Errorf("Meta = %v, want round-tripped values", bucket[0].Meta)
	}
}
