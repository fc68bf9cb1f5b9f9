package generate

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Cache is a TTL cache of model suggestions keyed by the trimmed line.
type Cache struct {
	cache *ttlcache.Cache[string, string]
}

// NewCache creates a Cache whose entries expire after ttl.
// maxEntries bounds the cache size; 0 means unbounded.
func NewCache(ttl time.Duration, maxEntries uint64) *Cache {
	opts := []ttlcache.Option[string, string]{
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	}
	if maxEntries > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, string](maxEntries))
	}
	c := ttlcache.New[string, string](opts...)
	go c.Start()
	return &Cache{cache: c}
}

// Close stops the cache expiration loop.
func (c *Cache) Close() {
	c.cache.Stop()
}

// Get returns the cached suggestion for line.
func (c *Cache) Get(line string) (string, bool) {
	item := c.cache.Get(line)
	if item == nil || item.IsExpired() {
		return "", false
	}
	return item.Value(), true
}

// Set stores a suggestion for line with the default TTL.
func (c *Cache) Set(line, suggestion string) {
	c.cache.Set(line, suggestion, ttlcache.DefaultTTL)
}

// Len returns the number of cached suggestions.
func (c *Cache) Len() int {
	return c.cache.Len()
}
