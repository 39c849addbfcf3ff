package samples

import (
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var bucketAnchors = []byte("metric_anchors") // Metric -> Anchor

// boltAnchorStore implements AnchorStore using BoltDB.
type boltAnchorStore struct {
	db *bolt.DB
	mu sync.RWMutex
}

// NewBoltAnchorStore creates a BoltDB-based anchor store.
//
// Parameters:
//   - db: BoltDB database instance
//
// Returns:
//   - Configured AnchorStore
//   - Error if initialization fails
func NewBoltAnchorStore(db *bolt.DB) (AnchorStore, error) {
	// Initialize bucket.
	if err := db.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(bucketAnchors)
		return createErr
	}); err != nil {
		return nil, fmt.Errorf("failed to create anchors bucket: %w", err)
	}

	return &boltAnchorStore{
		db: db,
	}, nil
}

// GetAnchor implements AnchorStore.GetAnchor.
func (s *boltAnchorStore) GetAnchor(metric Metric) (Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var anchor Anchor

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAnchors)
		data := b.Get([]byte(metric))

		if data == nil {
			// No anchor stored, stream starts from the beginning.
			anchor = ""
			return nil
		}

		anchor = Anchor(data)
		return nil
	})

	if err != nil {
		return "", err
	}

	return anchor, nil
}

// SetAnchor implements AnchorStore.SetAnchor.
func (s *boltAnchorStore) SetAnchor(metric Metric, anchor Anchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAnchors)

		if putErr := b.Put([]byte(metric), []byte(anchor)); putErr != nil {
			return fmt.Errorf("failed to store anchor: %w", putErr)
		}

		return nil
	})
}

// memoryAnchorStore implements AnchorStore using an in-memory map.
// Useful for testing.
type memoryAnchorStore struct {
	anchors map[Metric]Anchor
	mu      sync.RWMutex
}

// NewMemoryAnchorStore creates an in-memory anchor store.
//
// Returns a configured AnchorStore.
// Useful for testing or when persistence is not needed.
func NewMemoryAnchorStore() AnchorStore {
	return &memoryAnchorStore{
		anchors: make(map[Metric]Anchor),
	}
}

// GetAnchor implements AnchorStore.GetAnchor.
func (s *memoryAnchorStore) GetAnchor(metric Metric) (Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anchor, exists := s.anchors[metric]
	if !exists {
		return "", nil
	}

	return anchor, nil
}

// SetAnchor implements AnchorStore.SetAnchor.
func (s *memoryAnchorStore) SetAnchor(metric Metric, anchor Anchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.anchors[metric] = anchor
	return nil
}
