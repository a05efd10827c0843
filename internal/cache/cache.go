package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a generic in-memory cache with LRU eviction, TTL expiry, and
// an optional byte-cost budget. Expired entries are treated as misses on
// lookup and reclaimed either on the next insert or by Sweep, whichever
// comes first.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	items      map[K]*list.Element
	evictList  *list.List
	maxEntries int
	maxCost    int64 // 0 = unbounded
	totalCost  int64
	defaultTTL time.Duration
	stats      Stats
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	cost      int64
	createdAt time.Time
	expiresAt time.Time
}

// New creates a cache with the given max entries, cost budget in bytes
// (0 disables the budget), and default TTL.
func New[K comparable, V any](maxEntries int, maxCost int64, defaultTTL time.Duration) *Cache[K, V] {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Cache[K, V]{
		items:      make(map[K]*list.Element),
		evictList:  list.New(),
		maxEntries: maxEntries,
		maxCost:    maxCost,
		defaultTTL: defaultTTL,
	}
}

// Get retrieves a value from the cache. Returns the value and true if
// found and not expired, or the zero value and false otherwise.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}

	e := el.Value.(*entry[K, V])
	if time.Now().After(e.expiresAt) {
		c.removeLocked(el)
		c.stats.Misses++
		var zero V
		return zero, false
	}

	c.evictList.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// GetWithAge retrieves a value and its age. Returns the value, the time
// since it was cached, and true if found and not expired.
func (c *Cache[K, V]) GetWithAge(key K) (V, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, 0, false
	}

	e := el.Value.(*entry[K, V])
	now := time.Now()
	if now.After(e.expiresAt) {
		c.removeLocked(el)
		c.stats.Misses++
		var zero V
		return zero, 0, false
	}

	c.evictList.MoveToFront(el)
	c.stats.Hits++
	return e.value, now.Sub(e.createdAt), true
}

// Set stores a value with the default TTL and zero cost.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.defaultTTL, 0)
}

// SetWithTTL stores a value with a custom TTL and cost estimate. If the
// cache exceeds its entry or cost budget, expired entries are reclaimed
// first, then least-recently-used fresh entries, until under budget.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration, cost int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if el, ok := c.items[key]; ok {
		c.evictList.MoveToFront(el)
		e := el.Value.(*entry[K, V])
		c.totalCost += cost - e.cost
		e.value = value
		e.cost = cost
		e.createdAt = now
		e.expiresAt = now.Add(ttl)
	} else {
		e := &entry[K, V]{
			key:       key,
			value:     value,
			cost:      cost,
			createdAt: now,
			expiresAt: now.Add(ttl),
		}
		c.items[key] = c.evictList.PushFront(e)
		c.totalCost += cost
	}

	if c.overBudgetLocked() {
		c.sweepExpiredLocked(now)
	}
	for c.overBudgetLocked() && c.evictList.Len() > 1 {
		c.evictOldestLocked()
	}
}

func (c *Cache[K, V]) overBudgetLocked() bool {
	if c.evictList.Len() > c.maxEntries {
		return true
	}
	return c.maxCost > 0 && c.totalCost > c.maxCost
}

// Invalidate removes a single key from the cache.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
}

// InvalidateFunc removes all entries for which predicate returns true.
func (c *Cache[K, V]) InvalidateFunc(predicate func(K) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, el := range c.items {
		if predicate(key) {
			c.removeLocked(el)
		}
	}
}

// Sweep removes all expired entries and returns the number reclaimed.
// Intended to be called from a periodic timer.
func (c *Cache[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepExpiredLocked(time.Now())
}

// Flush removes all entries from the cache.
func (c *Cache[K, V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element)
	c.evictList.Init()
	c.totalCost = 0
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Cost returns the summed cost estimate of all entries.
func (c *Cache[K, V]) Cost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalCost
}

// Stats returns a snapshot of cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.items)
	s.Cost = c.totalCost
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// ResetStats zeroes the hit/miss/eviction counters.
func (c *Cache[K, V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = Stats{}
}

func (c *Cache[K, V]) sweepExpiredLocked(now time.Time) int {
	var removed int
	var next *list.Element
	for el := c.evictList.Front(); el != nil; el = next {
		next = el.Next()
		if now.After(el.Value.(*entry[K, V]).expiresAt) {
			c.removeLocked(el)
			removed++
		}
	}
	return removed
}

func (c *Cache[K, V]) removeLocked(el *list.Element) {
	e := el.Value.(*entry[K, V])
	delete(c.items, e.key)
	c.evictList.Remove(el)
	c.totalCost -= e.cost
}

func (c *Cache[K, V]) evictOldestLocked() {
	el := c.evictList.Back()
	if el == nil {
		return
	}
	c.removeLocked(el)
	c.stats.Evictions++
}
