package registry

import (
	"sync"

	"github.com/mcoot/typerace-go/internal/model"
)

// keyedMutex provides one exclusive-access lock per room code. Entries are
// reference counted and removed when the last holder releases, so the map
// does not grow with the lifetime total of rooms.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[model.RoomCode]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		entries: make(map[model.RoomCode]*lockEntry),
	}
}

// lock acquires the lock for code and returns its release function
func (k *keyedMutex) lock(code model.RoomCode) func() {
	k.mu.Lock()
	entry, ok := k.entries[code]
	if !ok {
		entry = &lockEntry{}
		k.entries[code] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, code)
		}
		k.mu.Unlock()
	}
}
