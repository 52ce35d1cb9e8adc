package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ProbeCache keeps recent probe results in memory so readiness checks do not
// hit the provider on every request.
type ProbeCache struct {
	cache *gocache.Cache
	ttl   time.Duration

	mu sync.Mutex // serializes checks so concurrent misses probe once
}

// NewProbeCache creates a cache whose entries live for ttl
func NewProbeCache(ttl time.Duration) *ProbeCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ProbeCache{
		cache: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Get retrieves a probe from the cache
func (c *ProbeCache) Get(key string) (Probe, bool) {
	if val, found := c.cache.Get(key); found {
		return val.(Probe), true
	}
	return Probe{}, false
}

// Set stores a probe with the cache TTL
func (c *ProbeCache) Set(key string, p Probe) {
	c.cache.Set(key, p, c.ttl)
}

// Delete removes a probe from the cache
func (c *ProbeCache) Delete(key string) {
	c.cache.Delete(key)
}

// Clear removes all probes
func (c *ProbeCache) Clear() {
	c.cache.Flush()
}

// Check returns the cached probe for key, or runs check and caches its result.
// The second return value reports whether the result came from the cache.
func (c *ProbeCache) Check(ctx context.Context, key string, check func(context.Context) Probe) (Probe, bool) {
	if p, ok := c.Get(key); ok {
		return p, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.Get(key); ok {
		return p, true
	}

	p := check(ctx)
	if p.CheckedAt.IsZero() {
		p.CheckedAt = time.Now()
	}
	c.Set(key, p)
	return p, false
}
