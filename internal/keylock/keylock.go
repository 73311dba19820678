// Package keylock provides a table of mutexes keyed by string.
//
// It is used to serialize check-then-act sequences that must be race-free
// per key (OTP issuance per account, event handling per chat user) without
// taking a process-wide lock. Entries are reference counted and removed as
// soon as no goroutine holds or waits for them, so the table stays bounded
// by the number of keys currently in use.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Table is a set of per-key mutexes. The zero value is not usable; call New.
// A Table is safe for concurrent use.
type Table struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New returns an empty Table.
func New() *Table {
	return &Table{locks: make(map[string]*entry)}
}

// Lock blocks until the mutex for key is held and returns the function that
// releases it. The returned function must be called exactly once.
func (t *Table) Lock(key string) (unlock func()) {
	t.mu.Lock()
	e, ok := t.locks[key]
	if !ok {
		e = &entry{}
		t.locks[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}

// Len reports how many keys currently have holders or waiters.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
