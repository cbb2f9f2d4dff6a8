package middleware

import (
	"sync"
	"time"
)

// Cache is a simple in-memory cache with expiration, used to avoid
// re-introspecting bearer tokens on every request.
type Cache struct {
	items map[string]cacheItem
	sync.RWMutex
}

// cacheItem holds cached data along with its expiration
type cacheItem struct {
	value      interface{}
	expiration time.Time
}

// NewCache creates a new Cache
func NewCache() *Cache {
	return &Cache{
		items: make(map[string]cacheItem),
	}
}

// Set adds an item to the cache with a specified expiration duration
func (c *Cache) Set(key string, value interface{}, duration time.Duration) {
	c.Lock()
	defer c.Unlock()
	c.items[key] = cacheItem{
		value:      value,
		expiration: time.Now().Add(duration),
	}
}

// Get retrieves an item from the cache. Expired items are treated as absent.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.RLock()
	defer c.RUnlock()

	item, found := c.items[key]
	if !found || time.Now().After(item.expiration) {
		return nil, false
	}
	return item.value, true
}

// Delete removes an item from the cache.
func (c *Cache) Delete(key string) {
	c.Lock()
	defer c.Unlock()
	delete(c.items, key)
}
