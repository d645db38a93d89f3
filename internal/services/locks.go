package services

import "sync"

// keyedMutex hands out one mutex per key. Entry generation and
// synchronization for a source run under its key so two edits racing on the
// same source cannot interleave their regeneration.
type keyedMutex struct {
	mapMu sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the mutex for key and returns its release function. Unused
// locks are dropped from the map once released.
func (k *keyedMutex) Lock(key string) func() {
	k.mapMu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mapMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mapMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mapMu.Unlock()
	}
}
