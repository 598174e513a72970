package tile

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a concurrent-safe LRU cache of encoded tile payloads with TTL
// expiration. Entries are keyed by region-set generation so a reload never serves
// tiles built from a previous set.
type Cache struct {
	mu         sync.Mutex
	entries    map[cacheKey]*list.Element
	lru        *list.List // front = most recently used
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	hits       atomic.Int64
	misses     atomic.Int64
}

type cacheKey struct {
	generation uint64
	x, y       int
}

type cacheEntry struct {
	key       cacheKey
	data      []byte
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewCache creates a Cache holding at most maxEntries payloads for ttl each.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		entries:    make(map[cacheKey]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the cached payload for tile (x, y) of generation, or nil on a miss.
func (c *Cache) Get(generation uint64, x, y int) []byte {
	key := cacheKey{generation, x, y}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil
	}
	e := el.Value.(*cacheEntry)
	if c.ttl > 0 && c.now().Sub(e.createdAt) > c.ttl {
		c.remove(el)
		c.misses.Add(1)
		return nil
	}

	c.lru.MoveToFront(el)
	c.hits.Add(1)
	return e.data
}

// Put stores a payload, evicting the least recently used entry when full.
func (c *Cache) Put(generation uint64, x, y int, data []byte) {
	key := cacheKey{generation, x, y}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*cacheEntry)
		e.data = data
		e.createdAt = c.now()
		c.lru.MoveToFront(el)
		return
	}

	for len(c.entries) >= c.maxEntries {
		c.remove(c.lru.Back())
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, data: data, createdAt: c.now()})
}

// InvalidateBefore drops every entry built from a generation older than generation.
func (c *Cache) InvalidateBefore(generation uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, el := range c.entries {
		if key.generation < generation {
			c.remove(el)
			n++
		}
	}
	return n
}

// Stats returns cache performance statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

// remove must be called with c.mu held.
func (c *Cache) remove(el *list.Element) {
	e := c.lru.Remove(el).(*cacheEntry)
	delete(c.entries, e.key)
}
