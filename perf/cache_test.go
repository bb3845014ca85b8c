package perf

import (
	"testing"
	"time"
)

func testCacheConfig() Config {
	c := Default()
	c.CacheCapacity = 2
	c.CacheTTL = 50 * time.Millisecond
	c.CompressThreshold = 8
	c.CacheCompression = true
	return c
}

func TestCachePutGetRoundTrip(t *testing.T) {
	c, err := NewCache(testCacheConfig())
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	c.Put("fp1", []byte("hello world this is a payload"))
	got, ok := c.Get("fp1")
	if !ok {
		t.Fatal("expected a hit")
	}
	if string(got) != "hello world this is a payload" {
		t.Fatalf("got %q", got)
	}
	if c.Stats().Hits != 1 {
		t.Fatalf("expected 1 hit, got %d", c.Stats().Hits)
	}
}

func TestCacheMissIsCounted(t *testing.T) {
	c, _ := NewCache(testCacheConfig())
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected a miss")
	}
	if c.Stats().Misses != 1 {
		t.Fatalf("expected 1 miss, got %d", c.Stats().Misses)
	}
}

func TestCacheEvictsPastCapacity(t *testing.T) {
	c, _ := NewCache(testCacheConfig()) // capacity 2
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Put("c", []byte("3")) // evicts "a" (least recently used)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected a to be evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("expected c to still be present")
	}
}

func TestCacheTTLExpiryAtRead(t *testing.T) {
	cfg := testCacheConfig()
	cfg.CacheTTL = 10 * time.Millisecond
	c, _ := NewCache(cfg)
	c.Put("fp", []byte("value"))
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("fp"); ok {
		t.Fatal("expected entry to have expired")
	}
}
