// Package locker serializes mutations per logical key. Each store
// routes writes for one account through the same mutex so
// check-then-mutate sequences cannot interleave.
package locker

import "sync"

// Keyed hands out one mutex per key. Mutexes are never released; the
// key space (accounts of a personal vault) is small and bounded.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns an empty keyed locker.
func New() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use.
func (k *Keyed) Lock(key string) {
	k.get(key).Lock()
}

// Unlock releases the mutex for key.
func (k *Keyed) Unlock(key string) {
	k.get(key).Unlock()
}

func (k *Keyed) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}
