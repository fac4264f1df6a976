// Package cache provides a keyed, time-expiring cache with single-flight
// population.
//
// A read that misses hands the caller an exclusive WriteHandle for the key.
// Every other reader of that key blocks until the handle is resolved, so at
// most one caller produces a value for a key at a time. Values expire a fixed
// duration after they were committed; expired values are treated as absent on
// read and reclaimed by GC.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a keyed cache with per-entry expiry and single-flight population.
//
// All methods are safe for concurrent use. Values are returned as stored, not
// copied; a caller that mutates a returned value shares the mutation with
// every other reader, so treat cached values as immutable.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[K]entry[V]
	pending map[K]*slot
	now     func() time.Time
}

type entry[V any] struct {
	value    V
	inserted time.Time
}

// slot tracks one in-flight population. Its channel is closed exactly once,
// when the owning WriteHandle commits or abandons.
type slot struct {
	done chan struct{}
}

// New creates a cache whose entries expire ttl after they are committed.
// It panics if ttl is not positive.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	if ttl <= 0 {
		panic("cache: ttl must be positive")
	}
	return &Cache[K, V]{
		ttl:     ttl,
		entries: make(map[K]entry[V]),
		pending: make(map[K]*slot),
		now:     time.Now,
	}
}

// GetCached returns the fresh value stored for key, or hands the caller the
// exclusive right to produce one.
//
// When the returned handle is nil, the value was committed less than ttl ago.
// Otherwise the caller owns the key's WriteHandle and must resolve it with
// Commit or Abandon; until then every other GetCached for the same key blocks.
// A caller that finds the key owned waits for the handle to resolve and then
// re-examines the entry, so a commit is observed by all waiters and an
// abandoned key passes to the next caller in line.
//
// The error is non-nil only when ctx is done while waiting.
func (c *Cache[K, V]) GetCached(ctx context.Context, key K) (V, *WriteHandle[K, V], error) {
	var zero V
	for {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && c.now().Sub(e.inserted) < c.ttl {
			value := e.value
			c.mu.Unlock()
			return value, nil, nil
		}
		if s, ok := c.pending[key]; ok {
			c.mu.Unlock()
			select {
			case <-s.done:
				continue
			case <-ctx.Done():
				return zero, nil, ctx.Err()
			}
		}
		s := &slot{done: make(chan struct{})}
		c.pending[key] = s
		c.mu.Unlock()
		return zero, &WriteHandle[K, V]{cache: c, key: key, slot: s}, nil
	}
}

// GC removes every entry that has outlived the ttl. Entries whose age equals
// the ttl exactly are kept even though reads already treat them as absent.
// In-flight populations are never touched. GC returns the number of entries
// removed.
func (c *Cache[K, V]) GC() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.inserted) > c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// WriteHandle is the exclusive right to populate one cache key.
//
// A handle is resolved exactly once, by Commit or Abandon. Resolving it a
// second time panics: a handle that is shared or outlives its resolution
// indicates a logic error in the caller. A handle is owned by one goroutine
// and is not safe for concurrent use.
type WriteHandle[K comparable, V any] struct {
	cache    *Cache[K, V]
	key      K
	slot     *slot
	resolved bool
}

// Commit stores value for the handle's key, starting its expiry clock, and
// wakes every caller waiting on the key.
func (h *WriteHandle[K, V]) Commit(value V) {
	c := h.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	h.resolveLocked()
	c.entries[h.key] = entry[V]{value: value, inserted: c.now()}
	delete(c.pending, h.key)
	close(h.slot.done)
}

// Abandon releases the handle without storing a value and wakes every caller
// waiting on the key. The first of them to reacquire the key becomes its next
// writer.
func (h *WriteHandle[K, V]) Abandon() {
	c := h.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	h.resolveLocked()
	delete(c.pending, h.key)
	close(h.slot.done)
}

// resolveLocked marks the handle resolved. Caller must hold h.cache.mu.
func (h *WriteHandle[K, V]) resolveLocked() {
	if h.resolved {
		panic("cache: write handle resolved twice")
	}
	if h.cache.pending[h.key] != h.slot {
		panic("cache: write handle does not own its key")
	}
	h.resolved = true
}
