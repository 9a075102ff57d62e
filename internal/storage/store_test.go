// ABOUTME: Behavior tests shared by every settings store backend
// ABOUTME: Runs the same cases against SQLite, bbolt, Badger and memory stores

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harper/locguard/internal/models"
)

// testDB creates a temporary SQLite store for testing.
func testDB(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func testBolt(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "settings.bolt"))
	if err != nil {
		t.Fatalf("failed to create bolt store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testBadger(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := NewInMemoryBadgerStore()
	if err != nil {
		t.Fatalf("failed to create badger store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"sqlite": func(t *testing.T) Store { return testDB(t) },
		"bolt":   func(t *testing.T) Store { return testBolt(t) },
		"badger": func(t *testing.T) Store { return testBadger(t) },
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
	}
}

func cacheEntry(lat, lng float64, at time.Time) models.CacheEntry {
	return models.CacheEntry{
		Epoch: at,
		Position: models.Position{
			Coords:    models.Coords{Latitude: lat, Longitude: lng, Accuracy: models.Float(537)},
			Timestamp: at,
		},
	}
}

func TestStore_LoadDefaultsWhenEmpty(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			st, err := s.Load(context.Background())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			def := models.DefaultSettings()
			if st.DefaultLevel != def.DefaultLevel || st.Epsilon != def.Epsilon || len(st.Levels) != 3 {
				t.Errorf("expected default settings, got %+v", st)
			}
			if st.CachedPos == nil || st.DomainLevel == nil {
				t.Error("expected initialized maps")
			}
		})
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			in := models.DefaultSettings()
			in.Paused = true
			in.DefaultLevel = "high"
			in.DomainLevel["maps.example.com"] = "real"
			in.Levels["street"] = models.LevelSpec{Radius: 50, CacheTime: 1}
			in.CachedPos["medium"] = cacheEntry(45.1, 9.1, at)

			if err := s.Save(ctx, in); err != nil {
				t.Fatalf("Save: %v", err)
			}
			out, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}

			if !out.Paused || out.DefaultLevel != "high" || out.DomainLevel["maps.example.com"] != "real" {
				t.Errorf("settings not round-tripped: %+v", out)
			}
			if out.Levels["street"].Radius != 50 {
				t.Errorf("custom level lost: %+v", out.Levels)
			}
			entry, ok := out.CachedPos["medium"]
			if !ok {
				t.Fatal("cache entry lost")
			}
			if !entry.Epoch.Equal(at) || entry.Position.Coords.Latitude != 45.1 || *entry.Position.Coords.Accuracy != 537 {
				t.Errorf("unexpected cache entry %+v", entry)
			}
		})
	}
}

func TestStore_SaveReplacesCache(t *testing.T) {
	at := time.Now().UTC()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			in := models.DefaultSettings()
			in.CachedPos["low"] = cacheEntry(1, 1, at)
			in.CachedPos["high"] = cacheEntry(2, 2, at)
			mustNoError(t, s.Save(ctx, in))

			delete(in.CachedPos, "high")
			mustNoError(t, s.Save(ctx, in))

			out, err := s.Load(ctx)
			mustNoError(t, err)
			if _, ok := out.CachedPos["high"]; ok {
				t.Error("stale cache entry survived Save")
			}
			if _, ok := out.CachedPos["low"]; !ok {
				t.Error("cache entry lost")
			}
		})
	}
}

func TestStore_PutCacheEntryKeepsOtherFields(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			mustNoError(t, s.Update(ctx, func(st *models.Settings) error {
				st.Paused = true
				st.DomainLevel["news.example"] = "low"
				st.CachedPos["low"] = cacheEntry(3, 3, at)
				return nil
			}))

			mustNoError(t, s.PutCacheEntry(ctx, "medium", cacheEntry(45, 9, at)))

			out, err := s.Load(ctx)
			mustNoError(t, err)
			if !out.Paused || out.DomainLevel["news.example"] != "low" {
				t.Errorf("cache write clobbered settings: %+v", out)
			}
			if _, ok := out.CachedPos["low"]; !ok {
				t.Error("cache write clobbered another level")
			}
			if out.CachedPos["medium"].Position.Coords.Latitude != 45 {
				t.Errorf("cache entry not written: %+v", out.CachedPos["medium"])
			}

			mustNoError(t, s.PutCacheEntry(ctx, "medium", cacheEntry(46, 10, at.Add(time.Minute))))
			out, err = s.Load(ctx)
			mustNoError(t, err)
			if out.CachedPos["medium"].Position.Coords.Latitude != 46 {
				t.Error("cache entry not overwritten")
			}
		})
	}
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	boom := errors.New("boom")
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			err := s.Update(ctx, func(st *models.Settings) error {
				st.DefaultLevel = "low"
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("expected fn error, got %v", err)
			}

			out, err := s.Load(ctx)
			mustNoError(t, err)
			if out.DefaultLevel != "medium" {
				t.Errorf("failed update was committed: %s", out.DefaultLevel)
			}
		})
	}
}

func TestStore_Reset(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			st := models.DefaultSettings()
			st.DefaultLevel = "high"
			st.CachedPos["high"] = cacheEntry(1, 2, time.Now())
			mustNoError(t, s.Save(ctx, st))
			mustNoError(t, s.Reset())

			out, err := s.Load(ctx)
			mustNoError(t, err)
			if out.DefaultLevel != "medium" || len(out.CachedPos) != 0 {
				t.Errorf("reset did not clear data: %+v", out)
			}
		})
	}
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					domain := string(rune('a'+i)) + ".example"
					if err := s.Update(ctx, func(st *models.Settings) error {
						st.DomainLevel[domain] = "high"
						return nil
					}); err != nil {
						t.Errorf("Update: %v", err)
					}
				}(i)
			}
			wg.Wait()

			out, err := s.Load(ctx)
			mustNoError(t, err)
			if len(out.DomainLevel) != 10 {
				t.Errorf("expected 10 domains, got %d", len(out.DomainLevel))
			}
		})
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "nested", "path")
	dbPath := filepath.Join(nestedDir, "test.db")

	db, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create db: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nestedDir); os.IsNotExist(err) {
		t.Error("directory was not created")
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %s, want %s", db.Path(), dbPath)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	db, err := NewSQLiteStore(dbPath)
	mustNoError(t, err)
	mustNoError(t, db.Update(ctx, func(st *models.Settings) error {
		st.DefaultLevel = "low"
		return nil
	}))
	mustNoError(t, db.Close())

	db, err = NewSQLiteStore(dbPath)
	mustNoError(t, err)
	defer db.Close()

	st, err := db.Load(ctx)
	mustNoError(t, err)
	if st.DefaultLevel != "low" {
		t.Errorf("DefaultLevel = %s after reopen", st.DefaultLevel)
	}
}

func TestNewBoltStore_RequiresPath(t *testing.T) {
	if _, err := NewBoltStore("  "); err == nil {
		t.Error("expected error for empty path")
	}
}

func mustNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
