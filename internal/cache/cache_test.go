package cache

import (
	"sync"
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New(time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache reported a hit")
	}

	c.Set("tasks/list", []string{"a", "b"})
	got, ok := c.Get("tasks/list")
	if !ok {
		t.Fatal("Get missed a fresh entry")
	}
	if v := got.([]string); len(v) != 2 {
		t.Errorf("cached value = %v, want 2 elements", v)
	}
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("key", "value")
	if _, ok := c.Get("key"); !ok {
		t.Fatal("entry missing before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("key"); ok {
		t.Error("entry survived past its TTL")
	}
	// Expired entries are collected on read.
	if c.Len() != 0 {
		t.Errorf("Len = %d after expired read, want 0", c.Len())
	}
}

func TestInvalidatePattern(t *testing.T) {
	c := New(time.Minute)
	c.Set("tasks/list", 1)
	c.Set("tasks/count", 2)
	c.Set("agents/list", 3)

	c.Invalidate("tasks/")

	if _, ok := c.Get("tasks/list"); ok {
		t.Error("tasks/list survived invalidation")
	}
	if _, ok := c.Get("tasks/count"); ok {
		t.Error("tasks/count survived invalidation")
	}
	if _, ok := c.Get("agents/list"); !ok {
		t.Error("agents/list was wrongly invalidated")
	}
}

func TestInvalidateAll(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Invalidate("")
	if c.Len() != 0 {
		t.Errorf("Len = %d after full invalidation, want 0", c.Len())
	}
}

func TestDefaultTTLFallback(t *testing.T) {
	c := New(0)
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %s, want default %s", c.ttl, DefaultTTL)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%4))
			for j := 0; j < 100; j++ {
				c.Set(key, j)
				c.Get(key)
				if j%10 == 0 {
					c.Invalidate(key)
				}
			}
		}(i)
	}
	wg.Wait()
}
