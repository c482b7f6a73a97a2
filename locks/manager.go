// Package locks grants exclusive, per-key access to named resources.
//
// It plays the role a database row lock (SELECT ... FOR UPDATE) plays in a
// transactional store: contenders for the same key serialize, contenders for
// different keys never block each other, and grant order is unspecified.
package locks

import (
	"fmt"
	"sync"
)

// Manager hands out at-most-one-holder guards per key.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

// Acquire blocks until the caller holds the key exclusively. Every returned
// Guard must be released exactly once. Callers must not re-acquire a key
// they already hold.
func (m *Manager) Acquire(key string) *Guard {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	// The ref count keeps the entry alive while waiters are queued on it.
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return &Guard{manager: m, key: key, entry: e}
}

// Guard is proof of exclusive access to a key, held for the duration of a
// critical section.
type Guard struct {
	manager *Manager
	key     string
	entry   *entry

	relMu    sync.Mutex
	released bool
}

// Release gives up exclusive access. Releasing a guard twice means the
// caller's critical-section handling is broken; that is an invariant
// violation and panics rather than being silently ignored.
func (g *Guard) Release() {
	g.relMu.Lock()
	if g.released {
		g.relMu.Unlock()
		panic(fmt.Sprintf("locks: guard for %q released twice", g.key))
	}
	g.released = true
	g.relMu.Unlock()

	g.entry.mu.Unlock()

	g.manager.mu.Lock()
	g.entry.refs--
	if g.entry.refs == 0 {
		delete(g.manager.entries, g.key)
	}
	g.manager.mu.Unlock()
}
