package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/target/prospector/internal/data"
)

type cacheEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// Cache is an in-process core.CacheRepository with lazy TTL eviction.
type Cache struct {
	mu      sync.Mutex
	clock   data.TimeProvider
	entries map[string]cacheEntry
}

// NewCache creates an empty Cache.
func NewCache(clock data.TimeProvider) *Cache {
	if clock == nil {
		clock = data.RealTimeProvider{}
	}
	return &Cache{clock: clock, entries: make(map[string]cacheEntry)}
}

var errEmptyKey = errors.New("key cannot be empty")

// Set stores value under key. A zero ttl never expires.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errEmptyKey
	}
	e := cacheEntry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expires = c.clock.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Get returns nil without error on a miss or an expired entry.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errEmptyKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && !c.clock.Now().Before(e.expires) {
		delete(c.entries, key)
		return nil, nil
	}
	return slices.Clone(e.value), nil
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, errEmptyKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok, nil
}

// Health always succeeds.
func (c *Cache) Health(context.Context) error { return nil }
