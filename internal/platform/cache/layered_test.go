package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubCache records operations and serves a fixed map.
type stubCache struct {
	data    map[string]any
	sets    int
	deletes int
	getErr  error
}

func newStubCache() *stubCache {
	return &stubCache{data: make(map[string]any)}
}

func (s *stubCache) Get(ctx context.Context, key string) (any, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *stubCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.sets++
	s.data[key] = value
	return nil
}

func (s *stubCache) Delete(ctx context.Context, key string) error {
	s.deletes++
	delete(s.data, key)
	return nil
}

func (s *stubCache) Close() error { return nil }

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(10)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v" {
		t.Fatalf("got %v, want v", got)
	}

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := NewMemoryCache(10)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", -time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired entry: got %v, want ErrNotFound", err)
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	c := NewMemoryCache(2)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", 1, time.Minute)
	c.Set(ctx, "b", 2, time.Minute)

	// Touch "a" so "b" becomes the eviction candidate.
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatalf("Get a: %v", err)
	}

	c.Set(ctx, "c", 3, time.Minute)

	if _, err := c.Get(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("b should be evicted, got %v", err)
	}
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatalf("a should survive: %v", err)
	}
	if size, _ := c.Stats(); size != 2 {
		t.Fatalf("size %d, want 2", size)
	}
}

func TestMemoryCache_UpdateExisting(t *testing.T) {
	c := NewMemoryCache(2)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k", 1, time.Minute)
	c.Set(ctx, "k", 2, time.Minute)

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 2 {
		t.Fatalf("got %v, want 2", got)
	}
	if size, _ := c.Stats(); size != 1 {
		t.Fatalf("size %d, want 1", size)
	}
}

func TestLayeredCache_L1Hit(t *testing.T) {
	l1, l2 := newStubCache(), newStubCache()
	l1.data["k"] = "from-l1"
	l2.data["k"] = "from-l2"
	lc := NewLayeredCache(l1, l2, nil)
	defer lc.Close()

	got, err := lc.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "from-l1" {
		t.Fatalf("got %v, want from-l1", got)
	}
}

func TestLayeredCache_L2HitBackfillsL1(t *testing.T) {
	l1, l2 := newStubCache(), newStubCache()
	l2.data["k"] = "from-l2"
	lc := NewLayeredCache(l1, l2, nil)
	defer lc.Close()

	got, err := lc.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "from-l2" {
		t.Fatalf("got %v, want from-l2", got)
	}
	if l1.data["k"] != "from-l2" {
		t.Fatal("L2 hit did not backfill L1")
	}
}

func TestLayeredCache_Miss(t *testing.T) {
	lc := NewLayeredCache(newStubCache(), newStubCache(), nil)
	defer lc.Close()

	if _, err := lc.Get(context.Background(), "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestLayeredCache_WriteThrough(t *testing.T) {
	l1, l2 := newStubCache(), newStubCache()
	lc := NewLayeredCache(l1, l2, nil)
	defer lc.Close()

	if err := lc.Set(context.Background(), "k", "v", time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if l1.sets != 1 || l2.sets != 1 {
		t.Fatalf("sets l1=%d l2=%d, want 1/1", l1.sets, l2.sets)
	}
}

func TestLayeredCache_DeleteBothTiers(t *testing.T) {
	l1, l2 := newStubCache(), newStubCache()
	l1.data["k"], l2.data["k"] = "v", "v"
	lc := NewLayeredCache(l1, l2, nil)
	defer lc.Close()

	if err := lc.Delete(context.Background(), "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if l1.deletes != 1 || l2.deletes != 1 {
		t.Fatalf("deletes l1=%d l2=%d, want 1/1", l1.deletes, l2.deletes)
	}
}

func TestLayeredCache_InvalidateL1Only(t *testing.T) {
	l1, l2 := newStubCache(), newStubCache()
	l1.data["k"], l2.data["k"] = "v", "v"
	lc := NewLayeredCache(l1, l2, nil)
	defer lc.Close()

	if err := lc.InvalidateL1(context.Background(), "k"); err != nil {
		t.Fatalf("InvalidateL1: %v", err)
	}
	if l1.deletes != 1 || l2.deletes != 0 {
		t.Fatalf("deletes l1=%d l2=%d, want 1/0", l1.deletes, l2.deletes)
	}
	if _, ok := l2.data["k"]; !ok {
		t.Fatal("L2 entry should survive L1 invalidation")
	}
}

func TestLayeredCache_NilTiers(t *testing.T) {
	lc := NewLayeredCache(nil, nil, nil)

	if _, err := lc.Get(context.Background(), "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if err := lc.Set(context.Background(), "k", "v", time.Minute); err != nil {
		t.Fatalf("Set on empty layered cache: %v", err)
	}
}

func TestKeys(t *testing.T) {
	if got, want := DescriptionKey("yvdai-usd"), "adapter:yvdai-usd:description"; got != want {
		t.Errorf("DescriptionKey: got %q, want %q", got, want)
	}
}
