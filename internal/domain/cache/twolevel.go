package cache

import (
	"sync"
	"time"
)

// TwoLevelStats counts cache outcomes for observability and the testable
// hit_rate property.
type TwoLevelStats struct {
	L1Hits     int64
	L2Hits     int64
	Misses     int64
	Promotions int64
	Demotions  int64
}

// HitRate is (l1+l2) / (l1+l2+miss), or 0 with no lookups yet.
func (s TwoLevelStats) HitRate() float64 {
	total := s.L1Hits + s.L2Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.L1Hits+s.L2Hits) / float64(total)
}

// TwoLevelCache composes a hot, TTL-free L1 LRU with a warm,
// TTL-bearing L2 LRU. A read promotes an L2 hit into L1; a write fans
// out to both. A single mutex guards the whole structure: the promotion
// path is a read followed by a write, and a finer-grained scheme buys
// nothing at these sizes.
type TwoLevelCache[K comparable, V any] struct {
	mu    sync.Mutex
	l1    *LruCache[K, V]
	l2    *TtlLruCache[K, V]
	stats TwoLevelStats
}

// NewTwoLevelCache constructs a two-level cache with explicit per-level
// capacities and L2's entry TTL.
func NewTwoLevelCache[K comparable, V any](l1Capacity, l2Capacity int, l2TTL time.Duration) *TwoLevelCache[K, V] {
	return &TwoLevelCache[K, V]{
		l1: NewLruCache[K, V](l1Capacity),
		l2: NewTtlLruCache[K, V](l2Capacity, l2TTL),
	}
}

// Get hits L1 first; on L1 miss, checks L2; on L2 hit, promotes into L1
// and returns. On total miss, increments Misses.
func (c *TwoLevelCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.l1.Get(key); ok {
		c.stats.L1Hits++
		return v, true
	}
	if v, ok := c.l2.Get(key); ok {
		c.stats.L2Hits++
		c.stats.Promotions++
		if _, didEvict := c.l1.Put(key, v); didEvict {
			c.stats.Demotions++
		}
		return v, true
	}
	c.stats.Misses++
	var zero V
	return zero, false
}

// Insert writes to both L1 and L2.
func (c *TwoLevelCache[K, V]) Insert(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, didEvict := c.l1.Put(key, value); didEvict {
		c.stats.Demotions++
	}
	c.l2.Put(key, value)
}

// Remove deletes key from both levels.
func (c *TwoLevelCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.l1.Remove(key)
	c.l2.Remove(key)
}

func (c *TwoLevelCache[K, V]) Stats() TwoLevelStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
