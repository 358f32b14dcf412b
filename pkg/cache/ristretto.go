package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// SnapshotCache is a ristretto-backed Cache. Key cardinality is bounded by
// game x common query shapes, so item-count costing is enough; no eviction
// policy beyond TTL is needed.
type SnapshotCache struct {
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds configuration for the ristretto backend.
type RistrettoConfig struct {
	NumCounters int64 // keys tracked for frequency, ~10x max items
	MaxCost     int64 // maximum number of cached snapshots
	BufferItems int64 // keys per Get buffer
	Logger      *zap.Logger
}

// NewSnapshotCache creates a new ristretto-backed cache.
func NewSnapshotCache(cfg *RistrettoConfig) (Cache, error) {
	if cfg == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("config and logger cannot be nil")
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}

	return &SnapshotCache{
		cache:  cache,
		logger: cfg.Logger,
	}, nil
}

// Get retrieves a value from the cache.
func (c *SnapshotCache) Get(key string) (interface{}, bool) {
	value, found := c.cache.Get(key)
	if found {
		HitsTotal.Inc()
	} else {
		MissesTotal.Inc()
		c.logger.Debug("cache-miss", zap.String("key", key))
	}
	return value, found
}

// Set stores a value with a TTL. Cost is 1: we count snapshots, not bytes.
func (c *SnapshotCache) Set(key string, value interface{}, ttl time.Duration) bool {
	ok := c.cache.SetWithTTL(key, value, 1, ttl)
	if ok {
		SetsTotal.Inc()
		c.logger.Debug("cache-set",
			zap.String("key", key),
			zap.Duration("ttl", ttl))
	}
	return ok
}

// Delete removes a value from the cache.
func (c *SnapshotCache) Delete(key string) {
	c.cache.Del(key)
	DeletesTotal.Inc()
}

// Clear removes all values from the cache.
func (c *SnapshotCache) Clear() {
	c.cache.Clear()
	c.logger.Info("cache-cleared")
}

// Close closes the cache and releases resources.
func (c *SnapshotCache) Close() {
	c.cache.Close()
}

// Wait blocks until pending writes have been applied. Test helper;
// ristretto applies sets asynchronously.
func (c *SnapshotCache) Wait() {
	c.cache.Wait()
}
