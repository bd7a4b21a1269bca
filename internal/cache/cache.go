package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/pasture-weather-service/internal/models"
)

// Cache stores reproducible simulation results by request key.
// Get returns (result, true, nil) on hit and (zero, false, nil) on miss or expiry.
type Cache interface {
	Get(ctx context.Context, key string) (models.SimulationResult, bool, error)
	Set(ctx context.Context, key string, value models.SimulationResult, ttl time.Duration) error
}

// InMemoryCache is a Cache backed by a map with per-entry TTL. Safe for concurrent use.
// When maxEntries is reached, expired entries are swept first and then the entry
// closest to expiry is evicted.
type InMemoryCache struct {
	mu         sync.RWMutex
	data       map[string]cacheEntry
	maxEntries int
	now        func() time.Time
}

type cacheEntry struct {
	value     models.SimulationResult
	expiresAt time.Time
}

// NewInMemoryCache creates an in-memory cache holding at most maxEntries results (0 means unbounded).
func NewInMemoryCache(maxEntries int) *InMemoryCache {
	return &InMemoryCache{
		data:       make(map[string]cacheEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached result for key. Expired entries are removed on access.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.SimulationResult, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return models.SimulationResult{}, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		if cur, still := c.data[key]; still && cur.expiresAt.Equal(entry.expiresAt) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return models.SimulationResult{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key until ttl elapses.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.SimulationResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, exists := c.data[key]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.data[key] = cacheEntry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *InMemoryCache) evictLocked(now time.Time) {
	for k, e := range c.data {
		if now.After(e.expiresAt) {
			delete(c.data, k)
		}
	}
	if len(c.data) < c.maxEntries {
		return
	}
	var victim string
	var soonest time.Time
	for k, e := range c.data {
		if victim == "" || e.expiresAt.Before(soonest) {
			victim, soonest = k, e.expiresAt
		}
	}
	delete(c.data, victim)
}
