// ABOUTME: Per-level cache of the most recent noisy position
// ABOUTME: Operates on the settings snapshot's cache map with age-based expiry

package cache

import (
	"time"

	"github.com/harper/locguard/internal/level"
	"github.com/harper/locguard/internal/models"
)

// Cache reads and writes noisy positions in a settings snapshot. Only radius
// levels participate; real and fixed never hit and never store.
type Cache struct {
	entries map[string]models.CacheEntry
	now     func() time.Time
}

// New wraps entries, which is written in place by Put. A nil clock uses time.Now.
func New(entries map[string]models.CacheEntry, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{entries: entries, now: now}
}

// Get returns the cached position for l if it is younger than l.CacheTTL.
// Entries stamped in the future (clock rewind) are treated as expired.
func (c *Cache) Get(l level.Level) (models.Position, bool) {
	if !l.IsRadius() || c.entries == nil {
		return models.Position{}, false
	}
	entry, ok := c.entries[l.Name]
	if !ok {
		return models.Position{}, false
	}
	age := c.now().Sub(entry.Epoch)
	if age < 0 || age >= l.CacheTTL {
		return models.Position{}, false
	}
	return entry.Position.Clone(), true
}

// Put overwrites the entry for l and returns what was stored.
func (c *Cache) Put(l level.Level, pos models.Position, at time.Time) (models.CacheEntry, bool) {
	if !l.IsRadius() || c.entries == nil {
		return models.CacheEntry{}, false
	}
	entry := models.CacheEntry{Epoch: at, Position: pos.Clone()}
	c.entries[l.Name] = entry
	return entry, true
}

// Age reports how long ago the entry for name was written.
func (c *Cache) Age(name string) (time.Duration, bool) {
	entry, ok := c.entries[name]
	if !ok {
		return 0, false
	}
	return c.now().Sub(entry.Epoch), true
}
