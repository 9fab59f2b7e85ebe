// Package cache provides an in-process key/value store with per-entry expiry.
//
// Expired entries are removed lazily when read, and in bulk by Cleanup. Cleanup
// only scans the table when the sweep interval has elapsed since the previous
// scan, so callers can invoke it on every request without paying for a full
// scan each time. There is no background goroutine.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Observer receives cache events, typically to feed metrics.
type Observer interface {
	CacheHit(key string)
	CacheMiss(key string, expired bool)
	CacheSweep(removed, remaining int)
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	mu            sync.Mutex
	entries       map[string]entry
	defaultTTL    time.Duration
	sweepInterval time.Duration
	lastSweep     time.Time
	now           func() time.Time
	observer      Observer
}

type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

func New(defaultTTL, sweepInterval time.Duration, opts ...Option) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	c := &Cache{
		entries:       make(map[string]entry),
		defaultTTL:    defaultTTL,
		sweepInterval: sweepInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastSweep = c.now()
	return c
}

// Set stores value under key with the default TTL, replacing any previous entry.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key with the given TTL, replacing any
// previous entry. A non-positive ttl stores an entry that is already expired.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
}

// Get returns the value stored under key if it has not expired. An expired
// entry is deleted as a side effect and reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	expired := false
	if ok && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		ok = false
		expired = true
	}
	obs := c.observer
	c.mu.Unlock()

	if obs != nil {
		if ok {
			obs.CacheHit(key)
		} else {
			obs.CacheMiss(key, expired)
		}
	}
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Cleanup removes every expired entry, but only when more than the sweep
// interval has passed since the last sweep. It reports how many entries were
// removed and whether a sweep actually ran.
func (c *Cache) Cleanup() (removed int, swept bool) {
	c.mu.Lock()
	now := c.now()
	if now.Sub(c.lastSweep) <= c.sweepInterval {
		c.mu.Unlock()
		return 0, false
	}
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.lastSweep = now
	remaining := len(c.entries)
	obs := c.observer
	c.mu.Unlock()

	if obs != nil {
		obs.CacheSweep(removed, remaining)
	}
	return removed, true
}

// Clear drops every entry. The sweep clock is left untouched.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len counts stored entries, including expired ones not yet evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetAs is Get with a type assertion. A value of another type is a miss.
func GetAs[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Key builds a namespaced cache key, e.g. Key("boards", "Sonar", "epics").
func Key(namespace string, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}
