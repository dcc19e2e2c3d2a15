// Package keylock provides mutual exclusion scoped to individual keys.
//
// Holders of different keys never block each other. Waiters for the same key
// may abandon the wait through their context.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Locker is a table of per-key locks. The zero value is not usable; use New.
type Locker[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

// New returns an empty Locker.
func New[K comparable]() *Locker[K] {
	return &Locker[K]{entries: make(map[K]*entry)}
}

// Lock blocks until the lock for key is held or ctx is done. On a context
// error the lock is not held and Unlock must not be called.
func (l *Locker[K]) Lock(ctx context.Context, key K) error {
	e := l.acquire(key)

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(key, e)
		return ctx.Err()
	}
}

// TryLock takes the lock for key only if it is free.
func (l *Locker[K]) TryLock(key K) bool {
	e := l.acquire(key)

	select {
	case e.sem <- struct{}{}:
		return true
	default:
		l.release(key, e)
		return false
	}
}

// Unlock releases the lock for key. It panics if key is not locked.
func (l *Locker[K]) Unlock(key K) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		panic("keylock: unlock of unlocked key")
	}

	select {
	case <-e.sem:
	default:
		panic("keylock: unlock of unlocked key")
	}
	l.release(key, e)
}

// Len returns the number of keys currently held or waited on.
func (l *Locker[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Locker[K]) acquire(key K) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Locker[K]) release(key K, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}
