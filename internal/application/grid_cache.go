package application

import (
	"strings"
	"sync"
	"time"

	"github.com/example/event-scheduler/internal/scheduler"
)

// gridCache keeps recently built grids until they expire or a commit touches
// their event.
type gridCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]gridCacheEntry
	// generations counts invalidations per event. A grid read before an
	// invalidation must not be stored after it.
	generations map[string]uint64
}

type gridCacheEntry struct {
	eventID   string
	grid      scheduler.Grid
	expiresAt time.Time
}

func newGridCache(ttl time.Duration, maxEntries int, now func() time.Time) *gridCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 64
	}
	if now == nil {
		now = time.Now
	}
	return &gridCache{
		now:         now,
		ttl:         ttl,
		maxEntries:  maxEntries,
		entries:     make(map[string]gridCacheEntry),
		generations: make(map[string]uint64),
	}
}

// Get returns a cached grid. Grids are immutable once built so the cached
// value is shared.
func (c *gridCache) Get(key string) (scheduler.Grid, bool) {
	if c == nil {
		return scheduler.Grid{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return scheduler.Grid{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return scheduler.Grid{}, false
	}
	return entry.grid, true
}

// Generation returns the invalidation counter of eventID. Capture it before
// reading the data a grid is built from and hand it to Store.
func (c *gridCache) Generation(eventID string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[eventID]
}

// Store caches grid unless eventID was invalidated after generation was
// captured. It reports whether the grid was kept.
func (c *gridCache) Store(key, eventID string, generation uint64, grid scheduler.Grid) bool {
	if c == nil {
		return false
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[eventID] != generation {
		return false
	}

	c.cleanupLocked()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = gridCacheEntry{eventID: eventID, grid: grid, expiresAt: expiry}
	return true
}

// InvalidateEvent drops every grid of eventID and advances its generation.
func (c *gridCache) InvalidateEvent(eventID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[eventID]++
	for key, entry := range c.entries {
		if entry.eventID == eventID {
			delete(c.entries, key)
		}
	}
}

func (c *gridCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *gridCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *gridCache) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}

func gridCacheKey(eventID string, params GridParams) string {
	var sb strings.Builder
	sb.WriteString(eventID)
	sb.WriteString("|")
	if params.Type != nil {
		sb.WriteString(string(*params.Type))
	}
	sb.WriteString("|")
	if params.Location != nil {
		sb.WriteString(params.Location.String())
	}
	return sb.String()
}
