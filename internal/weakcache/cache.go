// Package weakcache provides a map from keys to weakly-held values.
//
// A Cache never keeps its values alive: once the last strong reference to a
// value is dropped, the garbage collector may reclaim it and the entry
// disappears on the next read. Hits are a best-effort speed-up; callers must
// always be able to resolve a miss from the source of truth.
//
// Reads self-heal: Get removes an entry whose referent has been reclaimed, and
// Len/All/Keys/Values sweep every reclaimed entry before reporting.
// Iteration works on a snapshot taken after the sweep, so a value reclaimed
// while iterating is skipped rather than yielded as nil.
//
// The mutex only protects the map itself; it gives no ordering guarantees
// between a Set and a concurrent Get of the same key.
package weakcache

import (
	"iter"
	"sync"
	"weak"
)

// Cache maps keys to weak pointers. The zero value is not usable; use New.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]weak.Pointer[V]
}

// New creates an empty cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]weak.Pointer[V])}
}

// Set stores a weak reference to v under k, replacing any prior entry.
// A nil v removes the entry.
func (c *Cache[K, V]) Set(k K, v *V) {
	if v == nil {
		c.Delete(k)
		return
	}
	wp := weak.Make(v)

	c.mu.Lock()
	c.entries[k] = wp
	c.mu.Unlock()
}

// Get returns the live value for k. If the value has been reclaimed the
// entry is removed and Get reports false.
func (c *Cache[K, V]) Get(k K) (*V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wp, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	v := wp.Value()
	if v == nil {
		delete(c.entries, k)
		return nil, false
	}
	return v, true
}

// Has reports whether k maps to a live value.
func (c *Cache[K, V]) Has(k K) bool {
	_, ok := c.Get(k)
	return ok
}

// Delete removes k unconditionally.
func (c *Cache[K, V]) Delete(k K) {
	c.mu.Lock()
	delete(c.entries, k)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len sweeps reclaimed entries and returns the number of live ones.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	return len(c.entries)
}

// All yields live key/value pairs. Order is unspecified.
func (c *Cache[K, V]) All() iter.Seq2[K, *V] {
	snap := c.snapshot()
	return func(yield func(K, *V) bool) {
		for _, e := range snap {
			v := e.ref.Value()
			if v == nil {
				continue
			}
			if !yield(e.key, v) {
				return
			}
		}
	}
}

// Keys yields the keys of live entries.
func (c *Cache[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range c.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values yields live values.
func (c *Cache[K, V]) Values() iter.Seq[*V] {
	return func(yield func(*V) bool) {
		for _, v := range c.All() {
			if !yield(v) {
				return
			}
		}
	}
}

type snapshotEntry[K comparable, V any] struct {
	key K
	ref weak.Pointer[V]
}

func (c *Cache[K, V]) snapshot() []snapshotEntry[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	snap := make([]snapshotEntry[K, V], 0, len(c.entries))
	for k, wp := range c.entries {
		snap = append(snap, snapshotEntry[K, V]{key: k, ref: wp})
	}
	return snap
}

// sweepLocked evicts every entry whose referent has been reclaimed.
func (c *Cache[K, V]) sweepLocked() {
	for k, wp := range c.entries {
		if wp.Value() == nil {
			delete(c.entries, k)
		}
	}
}
