package ledger

import (
	"sync"

	"github.com/google/uuid"
)

type lockKey struct {
	sessionID uuid.UUID
	studentID uuid.UUID
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyLocks serializes work per (session, student) pair. Different keys
// proceed fully in parallel; entries are dropped once the last holder
// releases, so the map does not grow with history.
type keyLocks struct {
	mu      sync.Mutex
	entries map[lockKey]*lockEntry
}

func newKeyLocks() *keyLocks {
	return &keyLocks{entries: make(map[lockKey]*lockEntry)}
}

// lock acquires the mutex for the key and returns the release func.
func (k *keyLocks) lock(sessionID, studentID uuid.UUID) func() {
	key := lockKey{sessionID: sessionID, studentID: studentID}

	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
