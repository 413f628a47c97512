package application

import (
	"testing"
	"time"
)

func TestScheduleCacheStoresAndReturnsCopies(t *testing.T) {
	current := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	cache := newScheduleCache(time.Minute, 4, func() time.Time { return current })

	original := []Schedule{{ID: "schedule-1", Title: "Course X"}}
	cache.Store("room-1", cache.Begin(), original)

	// Mutating the original slice should not affect the cached copy.
	original[0].Title = "mutated"

	cached, ok := cache.Get("room-1")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if cached[0].Title != "Course X" {
		t.Fatalf("expected cached title to remain unchanged, got %s", cached[0].Title)
	}

	cached[0].Title = "changed"
	again, ok := cache.Get("room-1")
	if !ok || again[0].Title != "Course X" {
		t.Fatalf("expected cache to return independent copy, got %+v", again)
	}
}

func TestScheduleCacheExpiresEntries(t *testing.T) {
	current := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	cache := newScheduleCache(time.Second, 4, func() time.Time { return current })

	cache.Store("room-1", cache.Begin(), []Schedule{{ID: "schedule-1"}})
	if _, ok := cache.Get("room-1"); !ok {
		t.Fatalf("expected cache hit before expiry")
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.Get("room-1"); ok {
		t.Fatalf("expected cache entry to expire")
	}
}

func TestScheduleCacheInvalidateIsPerRoom(t *testing.T) {
	cache := newScheduleCache(time.Minute, 4, time.Now)
	cache.Store("room-1", cache.Begin(), []Schedule{{ID: "schedule-1"}})
	cache.Store("room-2", cache.Begin(), []Schedule{{ID: "schedule-2"}})

	cache.Invalidate("room-1")
	if _, ok := cache.Get("room-1"); ok {
		t.Fatalf("expected room-1 to be evicted")
	}
	if _, ok := cache.Get("room-2"); !ok {
		t.Fatalf("expected room-2 to remain cached")
	}
}

func TestScheduleCacheCachesEmptyResults(t *testing.T) {
	cache := newScheduleCache(time.Minute, 1, time.Now)
	cache.Store("room-1", cache.Begin(), nil)
	got, ok := cache.Get("room-1")
	if !ok || got != nil {
		t.Fatalf("expected cached empty result, got %v (%v)", got, ok)
	}

	cache.Store("room-2", cache.Begin(), nil)
	if _, ok := cache.Get("room-1"); ok {
		t.Fatalf("expected capacity eviction of room-1")
	}
}

func TestScheduleCacheDropsStoreStartedBeforeInvalidate(t *testing.T) {
	cache := newScheduleCache(time.Minute, 4, time.Now)

	gen := cache.Begin()
	// A schedule lands and is invalidated while the reader is still querying.
	cache.Invalidate("room-1")

	if cache.Store("room-1", gen, []Schedule{}) {
		t.Fatalf("expected stale store to be rejected")
	}
	if _, ok := cache.Get("room-1"); ok {
		t.Fatalf("expected no cached entry after a stale store")
	}

	if !cache.Store("room-1", cache.Begin(), []Schedule{{ID: "schedule-1"}}) {
		t.Fatalf("expected store at the current generation to succeed")
	}
	if got, ok := cache.Get("room-1"); !ok || len(got) != 1 {
		t.Fatalf("expected fresh entry, got %v (%v)", got, ok)
	}
}
