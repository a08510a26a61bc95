// Package keylock serializes work per key while letting different keys
// proceed in parallel.
package keylock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Locker hands out one exclusive slot per key. Entries are dropped once no
// caller holds or waits on them.
type Locker struct {
	mu   sync.Mutex
	keys map[string]*entry
}

func New() *Locker {
	return &Locker{keys: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done. The returned func releases
// the key and must be called exactly once.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.release(key, e, false)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, e, true) })
	}, nil
}

func (l *Locker) release(key string, e *entry, held bool) {
	if held {
		e.sem.Release(1)
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
	l.mu.Unlock()
}

// Len reports how many keys are currently tracked.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
