package cache

import (
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"

	"video-converter/internal/metrics"
)

// ErrInvalidCapacity is returned when a cache is created with capacity < 1.
var ErrInvalidCapacity = errors.New("cache capacity must be at least 1")

// LRU is a thread-safe, capacity-bounded cache that evicts the least
// recently used entry when a new key is inserted into a full cache. Get and
// Put both refresh recency.
type LRU[K comparable, V any] struct {
	name  string
	items *lru.Cache[K, V]
}

// New creates an LRU holding at most capacity entries. name labels the
// cache's metrics.
func New[K comparable, V any](name string, capacity int) (*LRU[K, V], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	items, err := lru.New[K, V](capacity)
	if err != nil {
		return nil, err
	}

	metrics.CacheEntries.WithLabelValues(name).Set(0)

	return &LRU[K, V]{name: name, items: items}, nil
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	v, ok := c.items.Get(key)
	if ok {
		metrics.CacheHits.WithLabelValues(c.name).Inc()
	} else {
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
	}
	return v, ok
}

// Put inserts or updates key. When the cache is full and key is new, the
// least recently used entry is evicted first.
func (c *LRU[K, V]) Put(key K, value V) {
	if evicted := c.items.Add(key, value); evicted {
		metrics.CacheEvictions.WithLabelValues(c.name).Inc()
	}
	metrics.CacheEntries.WithLabelValues(c.name).Set(float64(c.items.Len()))
}

// Remove deletes key if present.
func (c *LRU[K, V]) Remove(key K) {
	c.items.Remove(key)
	metrics.CacheEntries.WithLabelValues(c.name).Set(float64(c.items.Len()))
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	return c.items.Len()
}

// Keys returns the keys from least to most recently used.
func (c *LRU[K, V]) Keys() []K {
	return c.items.Keys()
}

// Purge drops every entry. The resource monitor calls this under memory
// pressure.
func (c *LRU[K, V]) Purge() {
	c.items.Purge()
	metrics.CacheEntries.WithLabelValues(c.name).Set(0)
}
