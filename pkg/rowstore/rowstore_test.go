package rowstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trainsync/pkg/logger"
)

// recordedRequest captures what the fake service saw.
type recordedRequest struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]any
}

// newTestServer returns an httptest server that records requests and
// replies with the given status and JSON body.
func newTestServer(t *testing.T, status int, reply any) (*httptest.Server, *recordedRequest) {
	t.Helper()

	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.auth = r.Header.Get("Authorization")

		if r.Body != nil {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				rec.body = body
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if reply != nil {
			if err := json.NewEncoder(w).Encode(reply); err != nil {
				t.Errorf("failed to encode reply: %v", err)
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv, rec
}

func newHTTPStore(srv *httptest.Server) Store {
	return NewHTTP(Config{
		BaseURL: srv.URL,
		Token:   "test-token",
		Timeout: 2 * time.Second,
	}, logger.Noop())
}

func TestHTTPInsert(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, Row{"id": "row_1", "kind": "strength"})
	store := newHTTPStore(srv)

	row, err := store.Insert(context.Background(), Sessions, Fields{"kind": "strength"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if rec.method != http.MethodPost {
		t.Errorf("method = %s, want POST", rec.method)
	}
	if rec.path != "/collections/sessions" {
		t.Errorf("path = %s, want /collections/sessions", rec.path)
	}
	if rec.auth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want bearer token", rec.auth)
	}
	if rec.body["kind"] != "strength" {
		t.Errorf("request body kind = %v, want strength", rec.body["kind"])
	}

	if row.ID() != "row_1" {
		t.Errorf("row id = %s, want row_1", row.ID())
	}
}

func TestHTTPInsertFailure(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusInternalServerError, nil)
	store := newHTTPStore(srv)

	_, err := store.Insert(context.Background(), Sessions, Fields{"kind": "strength"})
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("Insert() error = %v, want ErrWriteFailed", err)
	}
}

func TestHTTPUpdate(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, Row{"id": "row_1", "state": "finished"})
	store := newHTTPStore(srv)

	row, err := store.Update(context.Background(), Sessions, "row_1", Fields{"state": "finished"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if rec.method != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", rec.method)
	}
	if rec.path != "/collections/sessions/row_1" {
		t.Errorf("path = %s, want /collections/sessions/row_1", rec.path)
	}

	if row.String("state") != "finished" {
		t.Errorf("state = %s, want finished", row.String("state"))
	}
}

func TestHTTPUpdateNotFound(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusNotFound, nil)
	store := newHTTPStore(srv)

	_, err := store.Update(context.Background(), Sessions, "missing", Fields{"state": "finished"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestHTTPDelete(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusNoContent, nil)
	store := newHTTPStore(srv)

	if err := store.Delete(context.Background(), SessionSets, "row_9"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if rec.method != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", rec.method)
	}
	if rec.path != "/collections/session_sets/row_9" {
		t.Errorf("path = %s, want /collections/session_sets/row_9", rec.path)
	}
}

func TestHTTPDeleteAbsentRow(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusNotFound, nil)
	store := newHTTPStore(srv)

	// Deleting an absent row is not an error.
	if err := store.Delete(context.Background(), SessionSets, "missing"); err != nil {
		t.Errorf("Delete() error = %v, want nil", err)
	}
}

func TestHTTPSelect(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, []Row{
		{"id": "p_1", "date": "2026-09-01"},
		{"id": "p_2", "date": "2026-09-02"},
	})
	store := newHTTPStore(srv)

	rows, err := store.Select(context.Background(), PlannedSessions, Filter{
		"user_id":  "usr_1",
		"date_gte": "2026-09-01",
	})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	if rec.method != http.MethodGet {
		t.Errorf("method = %s, want GET", rec.method)
	}
	if rec.path != "/collections/planned_sessions" {
		t.Errorf("path = %s, want /collections/planned_sessions", rec.path)
	}
	if rec.query == "" {
		t.Error("filter was not encoded into the query string")
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].ID() != "p_1" {
		t.Errorf("rows[0] id = %s, want p_1", rows[0].ID())
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	row, err := store.Insert(ctx, Sessions, Fields{"kind": "cardio", "user_id": "usr_1"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if row.ID() == "" {
		t.Fatal("Insert() returned row without id")
	}

	updated, err := store.Update(ctx, Sessions, row.ID(), Fields{"state": "finished"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.String("state") != "finished" {
		t.Errorf("state = %s, want finished", updated.String("state"))
	}
	if updated.String("kind") != "cardio" {
		t.Error("Update() dropped untouched fields")
	}

	if _, err := store.Update(ctx, Sessions, "missing", Fields{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}

	if err := store.Delete(ctx, Sessions, row.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	// Repeat delete is harmless.
	if err := store.Delete(ctx, Sessions, row.ID()); err != nil {
		t.Errorf("Delete() second call error = %v, want nil", err)
	}

	rows, err := store.Select(ctx, Sessions, nil)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows after delete, want 0", len(rows))
	}
}

func TestMemoryStoreFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	dates := []string{"2026-08-30", "2026-08-31", "2026-09-01", "2026-09-02"}
	for _, d := range dates {
		if _, err := store.Insert(ctx, PlannedSessions, Fields{"user_id": "usr_1", "date": d}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.Insert(ctx, PlannedSessions, Fields{"user_id": "usr_2", "date": "2026-09-01"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", nil, 5},
		{"equality", Filter{"user_id": "usr_1"}, 4},
		{"lower bound", Filter{"user_id": "usr_1", "date_gte": "2026-08-31"}, 3},
		{"upper bound", Filter{"user_id": "usr_1", "date_lte": "2026-08-31"}, 2},
		{"range", Filter{"user_id": "usr_1", "date_gte": "2026-08-31", "date_lte": "2026-09-01"}, 2},
		{"no match", Filter{"user_id": "usr_3"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := store.Select(ctx, PlannedSessions, tt.filter)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if len(rows) != tt.want {
				t.Errorf("got %d rows, want %d", len(rows), tt.want)
			}
		})
	}
}

func TestMemoryStoreClonesRows(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	row, err := store.Insert(ctx, Sessions, Fields{"kind": "strength"})
	if err != nil {
		t.Fatal(err)
	}

	// Mutating the returned row must not leak into stored state.
	row["kind"] = "mutated"

	rows, err := store.Select(ctx, Sessions, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].String("kind") != "strength" {
		t.Errorf("stored kind = %s, want strength", rows[0].String("kind"))
	}
}

func TestRowAccessors(t *testing.T) {
	row := Row{
		"id":         "row_1",
		"reps":       float64(8),
		"weight_kg":  82.5,
		"started_at": "2026-09-01T10:00:00Z",
		"title":      nil,
	}

	if row.String("id") != "row_1" {
		t.Errorf("String(id) = %s, want row_1", row.String("id"))
	}
	if row.String("reps") != "8" {
		t.Errorf("String(reps) = %s, want 8", row.String("reps"))
	}
	if row.String("weight_kg") != "82.5" {
		t.Errorf("String(weight_kg) = %s, want 82.5", row.String("weight_kg"))
	}
	if row.String("title") != "" {
		t.Errorf("String(title) = %q, want empty for null field", row.String("title"))
	}
	if row.String("missing") != "" {
		t.Errorf("String(missing) = %q, want empty", row.String("missing"))
	}

	if v, ok := row.Float("weight_kg"); !ok || v != 82.5 {
		t.Errorf("Float(weight_kg) = %v, %v; want 82.5, true", v, ok)
	}
	if _, ok := row.Float("missing"); ok {
		t.Error("Float(missing) ok = true, want false")
	}

	if v, ok := row.Int("reps"); !ok || v != 8 {
		t.Errorf("Int(reps) = %v, %v; want 8, true", v, ok)
	}

	ts, ok := row.Time("started_at")
	if !ok {
		t.Fatal("Time(started_at) ok = false, want true")
	}
	if ts.UTC().Hour() != 10 {
		t.Errorf("Time(started_at) = %v, want hour 10 UTC", ts)
	}
	if _, ok := row.Time("id"); ok {
		t.Error("Time(id) ok = true for non-timestamp field")
	}
}

func TestStaticUser(t *testing.T) {
	id, err := StaticUser("usr_1").CurrentUserID()
	if err != nil {
		t.Fatalf("CurrentUserID() error = %v", err)
	}
	if id != "usr_1" {
		t.Errorf("id = %s, want usr_1", id)
	}

	if _, err := StaticUser("").CurrentUserID(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("empty user error = %v, want ErrNotAuthenticated", err)
	}
}
