package store

import "sync"

// spaceLocks hands out one mutex per space label so that the state machine's
// read-modify-write sequence is serialized per space while deliveries for
// different spaces proceed in parallel.
type spaceLocks struct {
	mu    sync.RWMutex
	locks map[string]*sync.Mutex
}

func newSpaceLocks() *spaceLocks {
	return &spaceLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *spaceLocks) get(label string) *sync.Mutex {
	l.mu.RLock()
	m, exists := l.locks[label]
	l.mu.RUnlock()
	if exists {
		return m
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if m, exists = l.locks[label]; exists {
		return m
	}
	m = &sync.Mutex{}
	l.locks[label] = m
	return m
}

// Lock acquires the per-space mutex and returns its unlock function.
func (l *spaceLocks) Lock(label string) func() {
	m := l.get(label)
	m.Lock()
	return m.Unlock
}
