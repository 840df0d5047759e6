// Package cache is a local ephemeral key-value cache with lazy expiry.
// Keys are composed "<type>:<id>" (e.g. "profile:user-42"); expiry is
// checked by the reader, so entries past their TTL are never returned
// even if no sweep has run. The background sweeper only reclaims memory.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flock_cache_hits_total",
		Help: "Number of cache reads served from a live entry.",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flock_cache_misses_total",
		Help: "Number of cache reads that found no live entry.",
	})
)

func init() {
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	// now is replaceable for tests
	now func() time.Time
}

// New creates a cache whose Set applies defaultTTL unless overridden
// with SetTTL. A zero defaultTTL means entries never expire.
func New(defaultTTL time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Key composes the canonical "<type>:<id>" cache key.
func Key(typ, id string) string {
	return typ + ":" + id
}

// Get returns the live value for key. Expired entries are removed on
// read and reported as a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		cacheMisses.Inc()
		return nil, false
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.mu.Lock()
		// re-check under write lock; a fresher Set may have raced
		if cur, still := c.entries[key]; still && !cur.expiresAt.IsZero() && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		cacheMisses.Inc()
		return nil, false
	}
	cacheHits.Inc()
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL. ttl <= 0 means
// the entry never expires.
func (c *Cache) SetTTL(key string, value interface{}, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: exp}
	c.mu.Unlock()
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, including not-yet-swept
// expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes expired entries and returns how many were reclaimed.
// Readers never depend on this; it only bounds memory over long sessions.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// SweepPrefix removes expired entries of one type tag only.
func (c *Cache) SweepPrefix(typ string) int {
	now := c.now()
	prefix := typ + ":"
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
