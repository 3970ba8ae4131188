package cache

import (
	"sort"
	"sync"
)

// HandleCache maps marker keys to the handles the renderer assigned them
type HandleCache struct {
	mu      sync.RWMutex
	handles map[string]uint
}

// NewHandleCache creates a new HandleCache
func NewHandleCache() *HandleCache {
	return &HandleCache{
		handles: make(map[string]uint),
	}
}

// Get retrieves a handle by marker key
func (c *HandleCache) Get(key string) (uint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handles[key]
	return h, ok
}

// Set stores a handle by marker key
func (c *HandleCache) Set(key string, handle uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles[key] = handle
}

// Delete removes a marker key
func (c *HandleCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handles, key)
}

// Reset clears all handles from the cache
func (c *HandleCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles = make(map[string]uint)
}

// Len returns the number of tracked markers
func (c *HandleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}

// Keys returns the tracked marker keys in sorted order
func (c *HandleCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.handles))
	for k := range c.handles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
