package cache

import (
	"testing"
	"time"
)

// fakeClock pins the cache's notion of now so expiry is deterministic.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(ttl time.Duration) (*Cache, *fakeClock) {
	c := New(ttl)
	fc := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c.now = fc.Now
	return c, fc
}

func TestCacheGetSet(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set(Key("profile", "alice"), "v1")

	got, ok := c.Get("profile:alice")
	if !ok || got.(string) != "v1" {
		t.Fatalf("got %v, %v", got, ok)
	}
	if _, ok := c.Get("profile:bob"); ok {
		t.Fatal("unexpected hit for absent key")
	}
}

func TestCacheLazyExpiry(t *testing.T) {
	c, fc := newTestCache(time.Minute)
	c.Set("profile:alice", "v1")

	fc.Advance(59 * time.Second)
	if _, ok := c.Get("profile:alice"); !ok {
		t.Fatal("entry expired early")
	}

	fc.Advance(2 * time.Second)
	// expired entries are never returned, sweep or no sweep
	if _, ok := c.Get("profile:alice"); ok {
		t.Fatal("expired entry served")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not removed on read, len=%d", c.Len())
	}
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	c, fc := newTestCache(0)
	c.Set("k", "v")
	fc.Advance(1000 * time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("zero-ttl entry must not expire")
	}
}

func TestCacheSetTTLOverride(t *testing.T) {
	c, fc := newTestCache(time.Minute)
	c.SetTTL("k", "v", time.Second)
	fc.Advance(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("explicit ttl not honored")
	}
}

func TestCacheSweep(t *testing.T) {
	c, fc := newTestCache(time.Minute)
	c.Set("profile:alice", "a")
	c.Set("profile:bob", "b")
	c.SetTTL("pinned", "p", 0)

	fc.Advance(2 * time.Minute)
	if removed := c.Sweep(); removed != 2 {
		t.Fatalf("expected 2 reclaimed, got %d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("expected pinned entry to survive, len=%d", c.Len())
	}
	if removed := c.Sweep(); removed != 0 {
		t.Fatalf("second sweep reclaimed %d", removed)
	}
}

func TestCacheSweepPrefix(t *testing.T) {
	c, fc := newTestCache(time.Minute)
	c.Set("profile:alice", "a")
	c.Set("conv:c1", "c")

	fc.Advance(2 * time.Minute)
	if removed := c.SweepPrefix("profile"); removed != 1 {
		t.Fatalf("expected 1 reclaimed, got %d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("other types must be untouched, len=%d", c.Len())
	}
}

func TestCacheDelete(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("k", "v")
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("deleted entry served")
	}
	c.Delete("k") // deleting absent keys is fine
}
