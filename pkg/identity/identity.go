// Package identity maps locally-generated ephemeral identifiers to
// server-issued identifiers.
//
// Local identifiers are minted immediately so the UI never blocks on a
// network round-trip; the authoritative remote identifier is bound
// exactly once, after the corresponding create call succeeds. A
// missing remote identifier means "operation pending", never an error.
//
// Example usage:
//
//	m := identity.NewMap()
//	local := m.AllocateLocal()
//	// ... remote create resolves ...
//	if err := m.Bind(local, remote); err != nil {
//	    log.Fatal(err)
//	}
package identity

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// LocalID is a client-minted ephemeral identifier, stable for the
// lifetime of the in-memory aggregate it names.
type LocalID string

// RemoteID is a server-issued identifier.
type RemoteID string

// Map translates between local and remote identifiers.
//
// All methods are safe for concurrent use.
type Map struct {
	mu     sync.RWMutex
	remote map[LocalID]RemoteID
}

// NewMap creates an empty identity map.
func NewMap() *Map {
	return &Map{
		remote: make(map[LocalID]RemoteID),
	}
}

// AllocateLocal generates a fresh locally-unique identifier.
//
// Always succeeds; no side effects beyond bookkeeping.
func (m *Map) AllocateLocal() LocalID {
	local := LocalID(uuid.New().String())

	m.mu.Lock()
	// Reserve the slot so Release on an unbound id is well-defined.
	m.remote[local] = ""
	m.mu.Unlock()

	return local
}

// Bind records the pairing between a local and a remote identifier.
//
// Binding the same pair twice is a no-op. Binding a local id that
// already carries a different remote id fails with ErrAlreadyBound:
// that indicates a duplicate create and must surface as a defect,
// not be silently overwritten.
func (m *Map) Bind(local LocalID, remote RemoteID) error {
	if remote == "" {
		return ErrEmptyRemoteID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.remote[local]
	if ok && existing != "" && existing != remote {
		return fmt.Errorf("%w: local=%s bound=%s attempted=%s",
			ErrAlreadyBound, local, existing, remote)
	}

	m.remote[local] = remote
	return nil
}

// RemoteFor returns the remote identifier bound to local.
//
// The second return value is false while the binding is pending.
// Callers must treat absence as "operation pending", not as an error.
func (m *Map) RemoteFor(local LocalID) (RemoteID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	remote, ok := m.remote[local]
	if !ok || remote == "" {
		return "", false
	}
	return remote, true
}

// Release drops the mapping for local.
//
// Used on confirmed local-only deletion before any remote id existed,
// or after a successful remote delete. Releasing an unknown id is a
// no-op.
func (m *Map) Release(local LocalID) {
	m.mu.Lock()
	delete(m.remote, local)
	m.mu.Unlock()
}

// Len returns the number of tracked local identifiers, bound or pending.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.remote)
}
