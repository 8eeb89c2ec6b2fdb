// Package cache is a small in-memory key-value cache with per-entry TTL.
//
// Jobs use it opportunistically (e.g. the weather job caches the current
// state) and read endpoints consult it before hitting storage. Entries expire
// lazily on read; a full sweep runs every pruneEvery writes so abandoned keys
// don't accumulate.
package cache

import (
	"sync"
	"time"
)

const pruneEvery = 256

type entry struct {
	value   any
	expires time.Time
}

type Cache struct {
	mu         sync.Mutex
	items      map[string]entry
	defaultTTL time.Duration
	writes     uint64
}

// New creates a cache. defaultTTL applies when Set is called with ttl <= 0;
// a non-positive defaultTTL falls back to 5 minutes.
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Cache{items: map[string]entry{}, defaultTTL: defaultTTL}
}

func (c *Cache) Get(key string) (any, bool) {
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
	return e.value, true
}

func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.items[key] = entry{value: value, expires: time.Now().Add(ttl)}
	c.writes++
	if c.writes%pruneEvery == 0 {
		c.pruneLocked(time.Now())
	}
	c.mu.Unlock()
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) pruneLocked(now time.Time) {
	for k, e := range c.items {
		if now.After(e.expires) {
			delete(c.items, k)
		}
	}
}
