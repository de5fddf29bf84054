package pricefeed

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a bounded LRU whose entries expire after a fixed TTL measured
// on an injected clock.
type TTLCache[K comparable, V any] struct {
	mu    sync.Mutex
	lru   *lru.Cache[K, cacheEntry[V]]
	ttl   time.Duration
	clock func() time.Time
}

// NewTTLCache builds a cache holding at most size entries. A nil clock uses time.Now.
func NewTTLCache[K comparable, V any](size int, ttl time.Duration, clock func() time.Time) (*TTLCache[K, V], error) {
	inner, err := lru.New[K, cacheEntry[V]](size)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	return &TTLCache[K, V]{lru: inner, ttl: ttl, clock: clock}, nil
}

// Get returns a live entry.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lru.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock().Before(entry.expiresAt) {
		c.lru.Remove(key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, cacheEntry[V]{value: value, expiresAt: c.clock().Add(c.ttl)})
}

// Len returns the number of stored entries, expired or not.
func (c *TTLCache[K, V]) Len() int {
	return c.lru.Len()
}
