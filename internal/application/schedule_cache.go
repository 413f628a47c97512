package application

import (
	"sync"
	"time"
)

// scheduleCache stores the live schedules of recently queried rooms so that
// read-only availability checks skip the schedule query while nothing changed.
//
// Every Invalidate bumps generation. A reader takes the generation with Begin
// before querying and hands it back to Store, which drops the result when an
// invalidation happened in between.
type scheduleCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	generation uint64
	entries    map[string]scheduleCacheEntry
}

type scheduleCacheEntry struct {
	schedules []Schedule
	expiresAt time.Time
}

func newScheduleCache(ttl time.Duration, maxEntries int, now func() time.Time) *scheduleCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &scheduleCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]scheduleCacheEntry),
	}
}

func (c *scheduleCache) Get(roomID string) ([]Schedule, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[roomID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, roomID)
		c.mu.Unlock()
		return nil, false
	}
	return cloneSchedules(entry.schedules), true
}

// Begin returns the generation a subsequent Store must present.
func (c *scheduleCache) Begin() uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Store keeps schedules read at generation gen. It reports false and keeps
// nothing when the cache was invalidated after gen was taken.
func (c *scheduleCache) Store(roomID string, gen uint64, schedules []Schedule) bool {
	if c == nil {
		return false
	}
	cloned := cloneSchedules(schedules)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return false
	}
	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[roomID] = scheduleCacheEntry{schedules: cloned, expiresAt: expiry}
	return true
}

// Invalidate drops the entry of one room and fences off reads in flight.
func (c *scheduleCache) Invalidate(roomID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.generation++
	delete(c.entries, roomID)
	c.mu.Unlock()
}

func (c *scheduleCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *scheduleCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneSchedules(schedules []Schedule) []Schedule {
	if len(schedules) == 0 {
		return nil
	}
	out := make([]Schedule, len(schedules))
	copy(out, schedules)
	return out
}
