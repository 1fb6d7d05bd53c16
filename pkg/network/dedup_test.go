package network

import (
	"fmt"
	"testing"
)

func TestDedupObserve(t *testing.T) {
	cache := NewDedupCache(16)

	if cache.Observe("fp-1") {
		t.Fatal("first sighting reported as duplicate")
	}
	if !cache.Observe("fp-1") {
		t.Fatal("second sighting not reported as duplicate")
	}
	if got := cache.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}
}

func TestDedupEviction(t *testing.T) {
	cache := NewDedupCache(3)

	for i := 0; i < 4; i++ {
		cache.Observe(fmt.Sprintf("fp-%d", i))
	}

	if got := cache.Len(); got != 3 {
		t.Fatalf("Len after overflow = %d, want 3", got)
	}

	// fp-0 fell off the horizon, so it reads as novel again.
	if cache.Observe("fp-0") {
		t.Fatal("evicted fingerprint still reported as duplicate")
	}
	// fp-3 is the newest entry and must still be present.
	if !cache.Observe("fp-3") {
		t.Fatal("recent fingerprint evicted prematurely")
	}
}

func TestDedupMinimumCapacity(t *testing.T) {
	cache := NewDedupCache(0)

	if cache.Observe("fp-a") {
		t.Fatal("first sighting reported as duplicate")
	}
	if !cache.Observe("fp-a") {
		t.Fatal("duplicate not detected at minimum capacity")
	}
	if got := cache.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}
}
