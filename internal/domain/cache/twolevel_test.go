package cache

import (
	"testing"
	"time"
)

func TestTwoLevel_InsertGetHitsL1(t *testing.T) {
	c := NewTwoLevelCache[string, string](2, 4, time.Second)

	c.Insert("k", "v")
	v, ok := c.Get("k")
	if !ok || v != "v" {
		t.Fatalf("expected hit with v, got %q ok=%v", v, ok)
	}
	if s := c.Stats(); s.L1Hits != 1 {
		t.Fatalf("expected l1_hits=1, got %+v", s)
	}
}

func TestTwoLevel_PromotionFromL2(t *testing.T) {
	c := NewTwoLevelCache[string, string](1, 4, time.Second)

	c.Insert("k", "v")
	c.Insert("k2", "v2") // evicts k from the 1-slot L1

	v, ok := c.Get("k")
	if !ok || v != "v" {
		t.Fatalf("expected L2 hit for evicted key, got %q ok=%v", v, ok)
	}
	s := c.Stats()
	if s.L2Hits != 1 || s.Promotions != 1 {
		t.Fatalf("expected l2_hits=1 promotions=1, got %+v", s)
	}
}

func TestTwoLevel_TTLExpiryMisses(t *testing.T) {
	c := NewTwoLevelCache[string, string](1, 4, 30*time.Millisecond)

	c.Insert("k", "v")
	c.Insert("k2", "v2") // k now only lives in L2

	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after L2 TTL expiry")
	}
	if s := c.Stats(); s.Misses != 1 {
		t.Fatalf("expected misses=1, got %+v", s)
	}
}

func TestTwoLevel_Remove(t *testing.T) {
	c := NewTwoLevelCache[string, string](2, 4, time.Second)
	c.Insert("k", "v")
	c.Remove("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("removed key must miss")
	}
}

func TestTwoLevel_HitRate(t *testing.T) {
	c := NewTwoLevelCache[string, int](2, 4, time.Second)
	c.Insert("a", 1)
	c.Get("a")
	c.Get("missing")

	if rate := c.Stats().HitRate(); rate != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %v", rate)
	}
}

func TestLru_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLruCache[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // b is now LRU
	evicted, did := c.Put("c", 3)
	if !did || evicted != "b" {
		t.Fatalf("expected b evicted, got %q did=%v", evicted, did)
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("recently used key must survive")
	}
}

func TestTtlLru_CleanupExpired(t *testing.T) {
	c := NewTtlLruCache[string, int](4, 20*time.Millisecond)
	c.Put("a", 1)
	c.Put("b", 2)
	time.Sleep(30 * time.Millisecond)
	c.Put("c", 3)

	if removed := c.CleanupExpired(); removed != 2 {
		t.Fatalf("expected 2 expired entries swept, got %d", removed)
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("fresh entry must survive cleanup")
	}
}
