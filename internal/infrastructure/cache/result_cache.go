package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// defaultCleanupInterval controls how often expired entries are swept
const defaultCleanupInterval = 30 * time.Second

// cacheEntry wraps a cached value with its storage time
type cacheEntry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

// isExpired checks if the cache entry has expired
func (e *cacheEntry) isExpired() bool {
	return time.Since(e.storedAt) >= e.ttl
}

// ResultCache memoizes expensive computations under coarse string keys with
// per-entry TTLs. Stale entries are recomputed synchronously by the next
// caller; concurrent callers racing past an expired entry share a single
// computation through the flight group. Staleness is bounded by the TTL,
// nothing stronger.
type ResultCache struct {
	entries sync.Map // map[string]*cacheEntry
	group   singleflight.Group
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped int32

	hits   int64
	misses int64
}

// NewResultCache creates a result cache and starts its background sweep
func NewResultCache(logger *zap.Logger) *ResultCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ResultCache{
		logger: logger,
		stopCh: make(chan struct{}),
	}
	go c.cleanupExpired()
	return c
}

// GetOrCompute returns the cached value for key, or calls compute and stores
// its result for ttl. A compute error is returned to the caller and nothing
// is stored.
func (c *ResultCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (any, error) {
	if value, ok := c.entries.Load(key); ok {
		entry := value.(*cacheEntry)
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			c.logger.Debug("result cache hit", zap.String("key", key))
			return entry.value, nil
		}
		c.entries.Delete(key)
	}

	atomic.AddInt64(&c.misses, 1)
	c.logger.Debug("result cache miss", zap.String("key", key))

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have stored while we waited on the flight group.
		if value, ok := c.entries.Load(key); ok {
			entry := value.(*cacheEntry)
			if !entry.isExpired() {
				return entry.value, nil
			}
		}
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.entries.Store(key, &cacheEntry{value: value, storedAt: time.Now(), ttl: ttl})
		return value, nil
	})
	return result, err
}

// Invalidate removes a single key
func (c *ResultCache) Invalidate(key string) {
	c.entries.Delete(key)
}

// InvalidateAll removes every cached entry
func (c *ResultCache) InvalidateAll() {
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
}

// Stats returns hit and miss counters
func (c *ResultCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Close stops the background sweep. Safe to call more than once.
func (c *ResultCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// cleanupExpired periodically removes expired entries
func (c *ResultCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			var removed int
			c.entries.Range(func(key, value any) bool {
				if value.(*cacheEntry).isExpired() {
					c.entries.Delete(key)
					removed++
				}
				return true
			})
			if removed > 0 {
				c.logger.Debug("swept expired result cache entries", zap.Int("removed", removed))
			}
		}
	}
}

// GetOrCompute is the typed wrapper over ResultCache.GetOrCompute
func GetOrCompute[T any](ctx context.Context, c *ResultCache, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	result, err := c.GetOrCompute(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
