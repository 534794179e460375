// Package cache is a read-through TTL cache for externally supplied
// configuration (earning rates, withdrawal rules, app config). It is
// never used for account balances; those always go through the
// ledger's atomic path.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/coinflow-app/coinflow/internal/infra/observability"
)

// DefaultTTL is the freshness window for domain configuration.
const DefaultTTL = 5 * time.Minute

// Loader fetches a value on miss or expiry.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	value     any
	fetchedAt time.Time
}

// Cache holds keyed values with a shared TTL.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// New creates a cache. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// GetWithCache returns the cached value if fresh, otherwise invokes
// the loader, stores the result with a fresh timestamp, and returns it.
func (c *Cache) GetWithCache(ctx context.Context, key string, loader Loader) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.fetchedAt) < c.ttl {
		c.mu.Unlock()
		observability.CacheHits.Inc()
		return e.value, nil
	}
	c.mu.Unlock()

	observability.CacheMisses.Inc()
	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = entry{value: value, fetchedAt: c.now()}
	c.mu.Unlock()
	return value, nil
}

// Set stores a value directly with a fresh timestamp.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, fetchedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate forces the next read of key to refetch.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidatePrefix invalidates every key with the given prefix.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of cached entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartSweep runs a periodic goroutine that evicts expired entries, so
// invalidated-by-time values don't linger in memory. Stop ends it.
func (c *Cache) StartSweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (c *Cache) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) sweep() {
	c.mu.Lock()
	for k, e := range c.entries {
		if c.now().Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}
