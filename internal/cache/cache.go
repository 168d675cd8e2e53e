// Package cache provides the in-process cache used for generated titles and tags.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cache stores string values by key.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	Len() int
}

type entry struct {
	value  string
	expiry time.Time
}

// TTL is a Cache whose entries expire a fixed duration after they are set.
// Expired entries are invisible to Get; Sweep reclaims their memory.
type TTL struct {
	mu    sync.Mutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

// NewTTL creates a TTL cache.
func NewTTL(ttl time.Duration) *TTL {
	return &TTL{items: make(map[string]entry), ttl: ttl, now: time.Now}
}

// Get returns the live value for key.
func (c *TTL) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok || !c.now().Before(e.expiry) {
		return "", false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (c *TTL) Set(key, value string) {
	c.mu.Lock()
	c.items[key] = entry{value: value, expiry: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Delete removes key.
func (c *TTL) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included until swept.
func (c *TTL) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Sweep drops expired entries and returns how many were removed.
func (c *TTL) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, e := range c.items {
		if !now.Before(e.expiry) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (c *TTL) RunSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				logger.Debug("cache: swept expired entries", slog.Int("removed", n), slog.Int("remaining", c.Len()))
			}
		}
	}
}
