// Package cache provides a bounded, concurrency-safe LRU cache.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a fixed-capacity least-recently-used cache with hit/miss counters.
// Zero values are valid cache entries, so callers can store negative lookups.
type LRU[K comparable, V any] struct {
	entries  *lru.Cache[K, V]
	capacity int
	hits     atomic.Int64
	misses   atomic.Int64
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries  int     `json:"entries"`
	Capacity int     `json:"capacity"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
}

// NewLRU creates a cache holding at most capacity entries. A capacity below
// one is raised to one.
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[K, V](capacity)
	return &LRU[K, V]{entries: entries, capacity: capacity}
}

// Get returns the cached value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	v, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Put stores a value, evicting the least recently used entry when full.
func (c *LRU[K, V]) Put(key K, value V) {
	c.entries.Add(key, value)
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int { return c.entries.Len() }

// Stats returns cache performance statistics.
func (c *LRU[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:  c.Len(),
		Capacity: c.capacity,
		Hits:     hits,
		Misses:   misses,
		HitRate:  hitRate,
	}
}
