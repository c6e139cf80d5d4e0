package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRU_GetSet(t *testing.T) {
	c := NewLRU(10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	c.Set("a", []byte("one"))
	body, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(body) != "one" {
		t.Fatalf("got %q, want %q", body, "one")
	}

	c.Set("a", []byte("two"))
	body, _ = c.Get("a")
	if string(body) != "two" {
		t.Fatalf("got %q after overwrite, want %q", body, "two")
	}
}

func TestLRU_TTLExpiry(t *testing.T) {
	c := NewLRU(10, 10*time.Millisecond)
	c.Set("a", []byte("one"))

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not collected, len = %d", c.Len())
	}
}

func TestLRU_EvictsOldestAtCapacity(t *testing.T) {
	c := NewLRU(3, time.Minute)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), []byte("v"))
		// Distinct insertion times so eviction order is deterministic.
		time.Sleep(time.Millisecond)
	}

	c.Set("k3", []byte("v"))

	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if _, ok := c.Get("k0"); ok {
		t.Fatal("oldest entry survived eviction")
	}
	if _, ok := c.Get("k3"); !ok {
		t.Fatal("newest entry missing")
	}
}

func TestLRU_Clear(t *testing.T) {
	c := NewLRU(10, time.Minute)
	c.Set("a", []byte("one"))
	c.Set("b", []byte("two"))

	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("len = %d after clear, want 0", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("hit after clear")
	}
}
