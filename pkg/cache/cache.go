// Package cache provides thread-safe caching with TTL support.
package cache

import (
	"sync"
	"time"
)

const cleanupInterval = 5 * time.Minute

// TTLBlame is for blame ranges of a file at a fixed commit (immutable once the commit exists).
const TTLBlame = 7 * 24 * time.Hour

type entry[V any] struct {
	value      V
	expiration time.Time
}

// Store is the lookup surface shared by Cache and Disk.
type Store[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	SetWithTTL(key string, value V, ttl time.Duration)
}

// Cache provides thread-safe in-memory caching with TTL.
type Cache[V any] struct {
	entries map[string]entry[V]
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	ttl     time.Duration
}

// New creates a new cache with the specified default TTL.
// Close stops the background cleanup.
func New[V any](ttl time.Duration) *Cache[V] {
	c := &Cache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.cleanupExpired(cleanupInterval)
	return c
}

// Get retrieves a value from cache if not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()
	if !exists {
		return zero, false
	}

	if time.Now().After(e.expiration) {
		c.mu.Lock()
		// Double-check after lock upgrade; a concurrent Set may have refreshed it.
		if e, exists := c.entries[key]; exists && time.Now().After(e.expiration) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores a value with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiration: time.Now().Add(ttl)}
}

// Len returns the number of stored entries, including expired ones not yet removed.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops background cleanup. The cache remains usable.
func (c *Cache[V]) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache[V]) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.removeExpired(time.Now())
		}
	}
}

func (c *Cache[V]) removeExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiration) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
