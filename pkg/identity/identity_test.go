package identity

import (
	"errors"
	"sync"
	"testing"
)

func TestAllocateLocalUnique(t *testing.T) {
	m := NewMap()

	seen := make(map[LocalID]bool)
	for i := 0; i < 100; i++ {
		local := m.AllocateLocal()
		if local == "" {
			t.Fatal("AllocateLocal() returned empty id")
		}
		if seen[local] {
			t.Fatalf("AllocateLocal() returned duplicate id %s", local)
		}
		seen[local] = true
	}

	if m.Len() != 100 {
		t.Errorf("Len() = %d, want 100", m.Len())
	}
}

func TestBindAndRemoteFor(t *testing.T) {
	m := NewMap()
	local := m.AllocateLocal()

	// Pending before bind.
	if _, ok := m.RemoteFor(local); ok {
		t.Error("RemoteFor() returned a binding before Bind()")
	}

	if err := m.Bind(local, "srv-42"); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	remote, ok := m.RemoteFor(local)
	if !ok {
		t.Fatal("RemoteFor() reported pending after successful Bind()")
	}
	if remote != "srv-42" {
		t.Errorf("RemoteFor() = %s, want srv-42", remote)
	}
}

func TestBindMonotonic(t *testing.T) {
	m := NewMap()
	local := m.AllocateLocal()

	if err := m.Bind(local, "srv-1"); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	// Identical rebind is a no-op.
	if err := m.Bind(local, "srv-1"); err != nil {
		t.Errorf("identical rebind error = %v, want nil", err)
	}

	// A different remote id must always fail.
	err := m.Bind(local, "srv-2")
	if !errors.Is(err, ErrAlreadyBound) {
		t.Errorf("conflicting rebind error = %v, want ErrAlreadyBound", err)
	}

	// The original binding survives the failed rebind.
	remote, ok := m.RemoteFor(local)
	if !ok || remote != "srv-1" {
		t.Errorf("RemoteFor() = %s/%v after failed rebind, want srv-1/true", remote, ok)
	}
}

func TestBindEmptyRemote(t *testing.T) {
	m := NewMap()
	local := m.AllocateLocal()

	if err := m.Bind(local, ""); !errors.Is(err, ErrEmptyRemoteID) {
		t.Errorf("Bind(empty) error = %v, want ErrEmptyRemoteID", err)
	}
}

func TestRelease(t *testing.T) {
	m := NewMap()
	local := m.AllocateLocal()

	if err := m.Bind(local, "srv-7"); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	m.Release(local)

	if _, ok := m.RemoteFor(local); ok {
		t.Error("RemoteFor() returned a binding after Release()")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after Release(), want 0", m.Len())
	}

	// Releasing twice is a no-op.
	m.Release(local)

	// A released id may be bound fresh.
	if err := m.Bind(local, "srv-8"); err != nil {
		t.Errorf("Bind() after Release() error = %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := NewMap()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				local := m.AllocateLocal()
				if err := m.Bind(local, RemoteID("srv-"+string(local))); err != nil {
					t.Errorf("Bind() error = %v", err)
					return
				}
				if _, ok := m.RemoteFor(local); !ok {
					t.Error("RemoteFor() pending after Bind()")
					return
				}
				m.Release(local)
			}
		}()
	}
	wg.Wait()

	if m.Len() != 0 {
		t.Errorf("Len() = %d after all releases, want 0", m.Len())
	}
}
