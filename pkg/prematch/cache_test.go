package prematch

import (
	"testing"
	"time"
)

func TestCacheTTL(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c := NewCache(WithTTL(10*time.Minute), WithClock(clock))
	c.Put("m1", "context")

	if got, ok := c.Get("m1"); !ok || got != "context" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	now = now.Add(9 * time.Minute)
	if _, ok := c.Get("m1"); !ok {
		t.Error("entry expired early")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("m1"); ok {
		t.Error("entry should have expired")
	}
}

func TestCacheEvict(t *testing.T) {
	c := NewCache()
	c.Put("m1", "a")
	c.Put("m2", "b")
	c.Put("m3", "c")

	c.Evict(map[string]bool{"m2": true})

	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
	if _, ok := c.Get("m2"); !ok {
		t.Error("kept entry missing")
	}
}

func TestCacheMiss(t *testing.T) {
	c := NewCache()
	if _, ok := c.Get("nope"); ok {
		t.Error("miss reported a hit")
	}
}
