package project

import "sync"

// Locks serializes mutations per project id. Concurrent reviewers updating
// different indicators on the same project must not race the aggregate gate
// check, so every command acquires the project's lock before reading the
// aggregate. Locks are never removed; the per-project footprint is one
// mutex and projects are archived, not deleted.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*sync.Mutex)}
}

func (l *Locks) get(projectID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[projectID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[projectID] = m
	}
	return m
}

// Do runs fn while holding the project's lock.
func (l *Locks) Do(projectID string, fn func() error) error {
	m := l.get(projectID)
	m.Lock()
	defer m.Unlock()
	return fn()
}
