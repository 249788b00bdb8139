package pipelines

import "time"

// DefinitionsCache provides an abstraction for caching the active
// pipeline definitions list. This allows swapping between in-memory,
// Redis, or other caching implementations.
type DefinitionsCache interface {
	// Get retrieves cached definitions, returns nil if cache miss or expired
	Get() []*Definition

	// Set stores definitions in cache
	Set(defs []*Definition)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries
	// Set to 0 for no expiration (manual invalidation only)
	TTL time.Duration
}

// DefaultCacheConfig returns sensible defaults for definition caching
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 0, // No TTL - only invalidate on mutations
	}
}
