package cache

import (
	"testing"
	"time"
)

func TestLRUSetGet(t *testing.T) {
	c := NewLRUCache[string](4, time.Minute)

	c.Set("a", "alpha")
	got, found := c.Get("a")
	if !found {
		t.Fatal("expected key to be present")
	}
	if got != "alpha" {
		t.Fatalf("got %q, want alpha", got)
	}

	if _, found := c.Get("missing"); found {
		t.Fatal("expected miss for unknown key")
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)

	// Touch "a" so "b" becomes the eviction candidate
	if _, found := c.Get("a"); !found {
		t.Fatal("expected a to be present")
	}

	c.Set("c", 3)

	if _, found := c.Get("b"); found {
		t.Fatal("expected b to be evicted")
	}
	if _, found := c.Get("a"); !found {
		t.Fatal("expected a to survive eviction")
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRUCache[int](4, 10*time.Millisecond)

	c.Set("a", 1)
	time.Sleep(25 * time.Millisecond)

	if _, found := c.Get("a"); found {
		t.Fatal("expected expired entry to miss")
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d, want 0 after expired get", c.Size())
	}
}

func TestCleanExpired(t *testing.T) {
	c := NewLRUCache[int](4, 10*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(25 * time.Millisecond)
	c.Set("c", 3)

	removed := c.CleanExpired()
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, found := c.Get("c"); !found {
		t.Fatal("expected fresh entry to survive cleanup")
	}
}

func TestDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](8, time.Minute)

	c.Set("user1|monthly|6months|", 1)
	c.Set("user1|weekly|ytd|", 2)
	c.Set("user2|monthly|6months|", 3)

	removed := c.DeletePrefix("user1|")
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, found := c.Get("user1|monthly|6months|"); found {
		t.Fatal("expected user1 entries to be gone")
	}
	if _, found := c.Get("user2|monthly|6months|"); !found {
		t.Fatal("expected user2 entry to survive")
	}
}
