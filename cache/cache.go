package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	iris "github.com/irislabs/iris"
	"github.com/irislabs/iris/logger"
)

// KeyPrefix namespaces fetch responses in Redis.
const KeyPrefix = "iris:fetch:"

// Cache is the response cache in front of a Store. Every store failure
// degrades gracefully: a failed lookup is a miss, a failed write is dropped,
// a failed invalidation reports not-deleted. The pipeline never sees a cache
// error.
type Cache struct {
	store Store
	ttl   time.Duration
	log   logger.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Errors  int64 `json:"errors"`
	Enabled bool  `json:"enabled"`
}

// New creates a cache over store with the given TTL. A nil store disables
// caching entirely.
func New(store Store, ttl time.Duration, log logger.Logger) *Cache {
	if log == nil {
		log = logger.Noop()
	}
	return &Cache{store: store, ttl: ttl, log: log}
}

// Enabled reports whether a store is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.store != nil
}

// Get returns the cached response for key, or nil on a miss. A returned
// response always has Cached set to true.
func (c *Cache) Get(ctx context.Context, key string) *iris.FetchResponse {
	if !c.Enabled() {
		return nil
	}

	data, err := c.store.Get(ctx, KeyPrefix+key)
	if err != nil {
		c.errors.Add(1)
		c.log.Warn("cache get failed", "key", key, "error", err)
		return nil
	}
	if data == nil {
		c.misses.Add(1)
		return nil
	}

	var resp iris.FetchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.errors.Add(1)
		c.log.Warn("cache entry corrupt, dropping", "key", key, "error", err)
		c.store.Delete(ctx, KeyPrefix+key)
		return nil
	}

	c.hits.Add(1)
	resp.Cached = true
	return &resp
}

// Set stores a response under key. The stored copy has the screenshot
// stripped and Cached forced to false so a later hit marks itself fresh.
func (c *Cache) Set(ctx context.Context, key string, resp *iris.FetchResponse) {
	if !c.Enabled() || resp == nil {
		return
	}

	stored := *resp
	stored.ScreenshotBase64 = ""
	stored.Cached = false

	data, err := json.Marshal(&stored)
	if err != nil {
		c.errors.Add(1)
		c.log.Warn("cache marshal failed", "key", key, "error", err)
		return
	}

	if err := c.store.Set(ctx, KeyPrefix+key, data, c.ttl); err != nil {
		c.errors.Add(1)
		c.log.Warn("cache set failed", "key", key, "error", err)
	}
}

// Invalidate removes a cached response, reporting whether one existed.
func (c *Cache) Invalidate(ctx context.Context, key string) bool {
	if !c.Enabled() {
		return false
	}

	deleted, err := c.store.Delete(ctx, KeyPrefix+key)
	if err != nil {
		c.errors.Add(1)
		c.log.Warn("cache invalidate failed", "key", key, "error", err)
		return false
	}
	return deleted
}

// Ping reports whether the underlying store is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.store.Ping(ctx)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Enabled: c.Enabled(),
	}
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.store.Close()
}
