package wipe

import (
	"fmt"
	"path/filepath"
	"sync"
)

// DriveLocks grants at most one session the right to erase a given drive
// path at a time. It is safe for concurrent use.
type DriveLocks struct {
	mu   sync.Mutex
	held map[string]string // cleaned path -> session ID
}

// NewDriveLocks creates an empty lock registry.
func NewDriveLocks() *DriveLocks {
	return &DriveLocks{held: make(map[string]string)}
}

// TryAcquire takes the lock for path on behalf of sessionID. It is
// re-entrant for the holder and returns ErrDriveBusy for anyone else.
func (l *DriveLocks) TryAcquire(path, sessionID string) error {
	key := filepath.Clean(path)

	l.mu.Lock()
	defer l.mu.Unlock()

	if holder, ok := l.held[key]; ok && holder != sessionID {
		return fmt.Errorf("%s held by session %s: %w", key, holder, ErrDriveBusy)
	}
	l.held[key] = sessionID
	return nil
}

// Release drops the lock if sessionID holds it.
func (l *DriveLocks) Release(path, sessionID string) {
	key := filepath.Clean(path)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] == sessionID {
		delete(l.held, key)
	}
}

// Holder returns the session currently holding path, if any.
func (l *DriveLocks) Holder(path string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	holder, ok := l.held[filepath.Clean(path)]
	return holder, ok
}
