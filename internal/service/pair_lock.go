package service

import (
	"fmt"
	"sync"
)

// keyedLocker serializes mutations per key. Attempt appends, grade writes,
// and reconciliation of reports naming the same (assignment, student) pair
// all funnel through the same pair key so concurrent writes cannot
// interleave; pending-report resolutions funnel through the report ID so a
// terminal transition happens at most once.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]*lockEntry)}
}

func pairKey(assignmentID, studentID uint) string {
	return fmt.Sprintf("%d:%d", assignmentID, studentID)
}

// Lock acquires the lock for the key and returns its release function.
func (l *keyedLocker) Lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
