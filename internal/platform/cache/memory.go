package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// entry is one cached value with its deadline
type entry struct {
	key      string
	value    any
	deadline time.Time
}

// MemoryCache is an in-process LRU cache with per-entry TTL. It backs the L1
// tier, so capacity is bounded and eviction is silent.
type MemoryCache struct {
	maxSize int
	items   map[string]*list.Element
	lru     *list.List
	mu      sync.Mutex
	stopCh  chan struct{}
}

// NewMemoryCache creates a memory cache holding at most maxSize entries
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}

	c := &MemoryCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		stopCh:  make(chan struct{}),
	}

	go c.janitor()

	return c
}

// Get retrieves a value, treating expired entries as absent
func (c *MemoryCache) Get(ctx context.Context, key string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, ErrNotFound
	}

	e := elem.Value.(*entry)
	if time.Now().After(e.deadline) {
		c.removeLocked(key)
		return nil, ErrNotFound
	}

	c.lru.MoveToFront(elem)
	return e.value, nil
}

// Set stores a value with the given TTL, evicting the least recently used
// entry when the cache is full
func (c *MemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(ttl)

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry)
		e.value = value
		e.deadline = deadline
		c.lru.MoveToFront(elem)
		return nil
	}

	c.items[key] = c.lru.PushFront(&entry{key: key, value: value, deadline: deadline})

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeLocked(oldest.Value.(*entry).key)
		}
	}

	return nil
}

// Delete removes a key
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
	return nil
}

// Close stops the janitor
func (c *MemoryCache) Close() error {
	close(c.stopCh)
	return nil
}

// Stats returns the current and maximum entry counts
func (c *MemoryCache) Stats() (size, maxSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items), c.maxSize
}

func (c *MemoryCache) removeLocked(key string) {
	if elem, ok := c.items[key]; ok {
		c.lru.Remove(elem)
		delete(c.items, key)
	}
}

// janitor evicts expired entries so idle caches do not pin dead values
func (c *MemoryCache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCh:
			return
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var expired []string
	for key, elem := range c.items {
		if now.After(elem.Value.(*entry).deadline) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		c.removeLocked(key)
	}
}
