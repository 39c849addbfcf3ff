package rowstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// memoryStore implements Store using in-memory maps.
// Useful for testing and offline operation.
type memoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Row
	nextID      int
}

// NewMemory creates an in-process Store.
//
// Rows live only as long as the store; identifiers are assigned
// sequentially per store.
func NewMemory() Store {
	return &memoryStore{
		collections: make(map[string]map[string]Row),
	}
}

// Insert implements Store.Insert.
func (s *memoryStore) Insert(_ context.Context, collection string, fields Fields) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.collections[collection]
	if !ok {
		rows = make(map[string]Row)
		s.collections[collection] = rows
	}

	s.nextID++
	id := fmt.Sprintf("%d", s.nextID)

	row := make(Row, len(fields)+1)
	for k, v := range fields {
		row[k] = v
	}
	row["id"] = id
	rows[id] = row

	return cloneRow(row), nil
}

// Update implements Store.Update.
func (s *memoryStore) Update(_ context.Context, collection, id string, fields Fields) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}

	for k, v := range fields {
		row[k] = v
	}

	return cloneRow(row), nil
}

// Delete implements Store.Delete.
func (s *memoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

// Select implements Store.Select.
func (s *memoryStore) Select(_ context.Context, collection string, filter Filter) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Row, 0)
	for _, row := range s.collections[collection] {
		if matchesFilter(row, filter) {
			result = append(result, cloneRow(row))
		}
	}

	return result, nil
}

// matchesFilter reports whether the row satisfies the filter. Keys
// ending in "_gte" or "_lte" compare lexically against the base
// field; all other keys compare for equality.
func matchesFilter(row Row, filter Filter) bool {
	for k, want := range filter {
		wantStr := fmt.Sprintf("%v", want)
		switch {
		case strings.HasSuffix(k, "_gte"):
			if fmt.Sprintf("%v", row[strings.TrimSuffix(k, "_gte")]) < wantStr {
				return false
			}
		case strings.HasSuffix(k, "_lte"):
			if fmt.Sprintf("%v", row[strings.TrimSuffix(k, "_lte")]) > wantStr {
				return false
			}
		default:
			if fmt.Sprintf("%v", row[k]) != wantStr {
				return false
			}
		}
	}
	return true
}

// cloneRow copies a row so callers cannot mutate stored state.
func cloneRow(row Row) Row {
	clone := make(Row, len(row))
	for k, v := range row {
		clone[k] = v
	}
	return clone
}
