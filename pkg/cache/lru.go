// Package cache is a small in-memory response cache for the registry's read
// paths. Listing and search answers change only when something is published
// or deleted, so a short TTL plus wholesale invalidation on writes keeps
// cached pages correct without tracking fine-grained dependencies.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	body     []byte
	expires  time.Time
	inserted time.Time
}

// LRU is a thread-safe byte cache with a TTL and max-size eviction. At
// capacity the oldest entry by insertion time goes first; expired entries
// are dropped lazily on Get.
type LRU struct {
	mu      sync.Mutex
	items   map[string]*entry
	maxSize int
	ttl     time.Duration
}

// NewLRU creates a cache holding at most maxSize entries for up to ttl each.
func NewLRU(maxSize int, ttl time.Duration) *LRU {
	if maxSize < 1 {
		maxSize = 1
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LRU{
		items:   make(map[string]*entry, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the cached body for key, or false if absent or expired.
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		delete(c.items, key)
		return nil, false
	}
	return e.body, true
}

// Set stores body under key, evicting the oldest entry at capacity.
func (c *LRU) Set(key string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, ok := c.items[key]; !ok && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = &entry{body: body, expires: now.Add(c.ttl), inserted: now}
}

// Clear drops every entry.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry, c.maxSize)
}

// Len reports the entry count, counting expired entries not yet collected.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// evictOldest removes the oldest entry. Caller holds c.mu.
func (c *LRU) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.items {
		if first || e.inserted.Before(oldest) {
			oldestKey, oldest = k, e.inserted
			first = false
		}
	}
	if !first {
		delete(c.items, oldestKey)
	}
}
