package application

import "sync"

// userLocks serializes work per user. Locks are created lazily; the global
// mutex is held only for map access, never across user work.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the user's mutex and returns its unlock func.
func (ul *userLocks) Acquire(userID string) func() {
	ul.mu.Lock()
	lock, ok := ul.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		ul.locks[userID] = lock
	}
	ul.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
