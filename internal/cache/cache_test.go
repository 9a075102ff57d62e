// ABOUTME: Tests for the noisy-position cache
// ABOUTME: Verifies TTL expiry, clock rewind handling and level filtering

package cache

import (
	"testing"
	"time"

	"github.com/harper/locguard/internal/level"
	"github.com/harper/locguard/internal/models"
)

var medium = level.Level{Name: "medium", Kind: level.KindRadius, Radius: 500, CacheTTL: 30 * time.Minute}

func fakeClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestCache_HitWithinTTL(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(map[string]models.CacheEntry{}, fakeClock(&now))

	pos := models.NewPosition(45, 9, models.Float(120))
	c.Put(medium, pos, now)

	now = now.Add(29 * time.Minute)
	got, ok := c.Get(medium)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Coords.Latitude != 45 || *got.Coords.Accuracy != 120 {
		t.Errorf("unexpected cached position %+v", got.Coords)
	}
}

func TestCache_MissAfterTTL(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(map[string]models.CacheEntry{}, fakeClock(&now))
	c.Put(medium, models.NewPosition(45, 9, nil), now)

	now = now.Add(30 * time.Minute)
	if _, ok := c.Get(medium); ok {
		t.Error("expected miss at exactly the TTL")
	}
}

func TestCache_NegativeAgeIsExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(map[string]models.CacheEntry{}, fakeClock(&now))
	c.Put(medium, models.NewPosition(45, 9, nil), now)

	now = now.Add(-time.Second)
	if _, ok := c.Get(medium); ok {
		t.Error("expected miss when the clock went backwards")
	}
}

func TestCache_IgnoresNonRadiusLevels(t *testing.T) {
	entries := map[string]models.CacheEntry{}
	c := New(entries, nil)

	for _, l := range []level.Level{{Name: "real", Kind: level.KindReal}, {Name: "fixed", Kind: level.KindFixed}} {
		if _, stored := c.Put(l, models.NewPosition(1, 1, nil), time.Now()); stored {
			t.Errorf("level %s should not be stored", l.Name)
		}
		if _, ok := c.Get(l); ok {
			t.Errorf("level %s should never hit", l.Name)
		}
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestCache_PutWritesThroughAndCopies(t *testing.T) {
	entries := map[string]models.CacheEntry{}
	c := New(entries, nil)

	pos := models.NewPosition(45, 9, models.Float(10))
	c.Put(medium, pos, time.Now())
	*pos.Coords.Accuracy = 99

	entry, ok := entries["medium"]
	if !ok {
		t.Fatal("expected entry in underlying map")
	}
	if *entry.Position.Coords.Accuracy != 10 {
		t.Error("cache entry aliases caller position")
	}
}

func TestCache_Age(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(map[string]models.CacheEntry{}, fakeClock(&now))
	c.Put(medium, models.NewPosition(45, 9, nil), now)

	now = now.Add(5 * time.Minute)
	age, ok := c.Age("medium")
	if !ok || age != 5*time.Minute {
		t.Errorf("Age = %v, %v", age, ok)
	}
	if _, ok := c.Age("low"); ok {
		t.Error("expected no age for missing level")
	}
}
