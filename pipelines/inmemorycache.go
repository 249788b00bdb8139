package pipelines

import (
	"sync"
	"time"
)

// InMemoryDefinitionsCache is a simple in-memory implementation of
// DefinitionsCache. Thread-safe for concurrent access.
type InMemoryDefinitionsCache struct {
	defs     []*Definition
	cachedAt time.Time
	config   CacheConfig
	mu       sync.RWMutex
	isValid  bool
}

// NewInMemoryDefinitionsCache creates a new in-memory definitions cache.
func NewInMemoryDefinitionsCache(config CacheConfig) *InMemoryDefinitionsCache {
	return &InMemoryDefinitionsCache{
		config:  config,
		isValid: false,
	}
}

// Get retrieves cached definitions.
// Returns nil if cache is invalid or expired.
func (c *InMemoryDefinitionsCache) Get() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isValid {
		return nil
	}

	if c.config.TTL > 0 {
		if time.Since(c.cachedAt) > c.config.TTL {
			return nil
		}
	}

	// Return copy to prevent external modifications
	defsCopy := make([]*Definition, len(c.defs))
	copy(defsCopy, c.defs)
	return defsCopy
}

// Set stores definitions in cache.
func (c *InMemoryDefinitionsCache) Set(defs []*Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.defs = make([]*Definition, len(defs))
	copy(c.defs, defs)
	c.cachedAt = time.Now()
	c.isValid = true
}

// Invalidate clears the cache.
func (c *InMemoryDefinitionsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isValid = false
	c.defs = nil
}

// IsValid returns true if cache contains valid data.
func (c *InMemoryDefinitionsCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isValid {
		return false
	}

	if c.config.TTL > 0 {
		return time.Since(c.cachedAt) <= c.config.TTL
	}

	return true
}
