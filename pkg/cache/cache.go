package cache

import "time"

// Cache is a short-TTL store of recent market snapshots. A get after TTL
// expiry behaves as a miss. Implementations must be safe for concurrent
// reads and writes; a miss on one key never blocks another.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns (value, true) if found, (nil, false) if not found or expired.
	Get(key string) (interface{}, bool)

	// Set stores a value in the cache with a TTL measured from insertion.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value from the cache.
	Delete(key string)

	// Clear removes all values from the cache.
	Clear()

	// Close closes the cache and releases resources.
	Close()
}
