package cache

import "time"

// TtlLruCache is an LruCache whose entries additionally expire after a
// fixed TTL. Get on an expired entry behaves as a miss and removes the
// entry; Peek reports the miss without removing it, leaving the physical
// removal to CleanupExpired (or the next Put at that slot).
type TtlLruCache[K comparable, V any] struct {
	inner *LruCache[K, ttlValue[V]]
	ttl   time.Duration
	now   func() time.Time
}

type ttlValue[V any] struct {
	value     V
	expiresAt time.Time
}

func NewTtlLruCache[K comparable, V any](capacity int, ttl time.Duration) *TtlLruCache[K, V] {
	return &TtlLruCache[K, V]{
		inner: NewLruCache[K, ttlValue[V]](capacity),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (c *TtlLruCache[K, V]) Get(key K) (V, bool) {
	var zero V
	v, ok := c.inner.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(v.expiresAt) {
		c.inner.Remove(key)
		return zero, false
	}
	return v.value, true
}

// Peek returns the value without promoting recency, still honoring TTL.
func (c *TtlLruCache[K, V]) Peek(key K) (V, bool) {
	var zero V
	v, ok := c.inner.Peek(key)
	if !ok {
		return zero, false
	}
	if c.now().After(v.expiresAt) {
		return zero, false
	}
	return v.value, true
}

func (c *TtlLruCache[K, V]) Put(key K, value V) {
	c.inner.Put(key, ttlValue[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

func (c *TtlLruCache[K, V]) Remove(key K) { c.inner.Remove(key) }

func (c *TtlLruCache[K, V]) Len() int { return c.inner.Len() }

// CleanupExpired sweeps every expired entry and returns the count
// removed.
func (c *TtlLruCache[K, V]) CleanupExpired() int {
	removed := 0
	now := c.now()
	for _, k := range c.inner.Keys() {
		v, ok := c.inner.Peek(k)
		if ok && now.After(v.expiresAt) {
			c.inner.Remove(k)
			removed++
		}
	}
	return removed
}
