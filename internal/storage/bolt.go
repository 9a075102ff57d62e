// ABOUTME: BoltDB storage implementation for privacy settings
// ABOUTME: One bucket for the settings blob and one keyed by level for the cache

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harper/locguard/internal/models"
	"go.etcd.io/bbolt"
)

const (
	settingsBucket = "settings"
	cacheBucket    = "cache"
	settingsKey    = "settings"
)

// BoltStore implements Store on a bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens a bbolt store at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0750); err != nil { //nolint:gosec // user data directory
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	s := &BoltStore{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{settingsBucket, cacheBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Sync flushes the file to disk.
func (s *BoltStore) Sync() error {
	return s.db.Sync()
}

// IsReadOnly reports whether the file was opened read-only.
func (s *BoltStore) IsReadOnly() bool {
	return s.db.IsReadOnly()
}

// Reset drops and recreates both buckets.
func (s *BoltStore) Reset() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{settingsBucket, cacheBucket} {
			if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return fmt.Errorf("delete %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.ensureBuckets()
}

// Load reads the settings and cache in one read transaction.
func (s *BoltStore) Load(ctx context.Context) (*models.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var st *models.Settings
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		st, err = boltLoad(tx)
		return err
	})
	return st, err
}

// Save replaces the settings and cache.
func (s *BoltStore) Save(ctx context.Context, st *models.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return boltSave(tx, st)
	})
}

// Update runs fn inside one write transaction.
func (s *BoltStore) Update(ctx context.Context, fn func(*models.Settings) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		st, err := boltLoad(tx)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		return boltSave(tx, st)
	})
}

// PutCacheEntry writes a single cache key.
func (s *BoltStore) PutCacheEntry(ctx context.Context, level string, entry models.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cacheBucket))
		if bucket == nil {
			return fmt.Errorf("cache bucket is missing")
		}
		return bucket.Put([]byte(level), data)
	})
}

func boltLoad(tx *bbolt.Tx) (*models.Settings, error) {
	sb := tx.Bucket([]byte(settingsBucket))
	cb := tx.Bucket([]byte(cacheBucket))
	if sb == nil || cb == nil {
		return nil, fmt.Errorf("settings buckets are missing")
	}

	st := models.DefaultSettings()
	if data := sb.Get([]byte(settingsKey)); data != nil {
		var err error
		st, err = decodeSettings(data)
		if err != nil {
			return nil, err
		}
	}

	err := cb.ForEach(func(k, v []byte) error {
		entry, err := decodeEntry(v)
		if err != nil {
			return err
		}
		st.CachedPos[string(k)] = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func boltSave(tx *bbolt.Tx, st *models.Settings) error {
	data, err := encodeSettings(st)
	if err != nil {
		return err
	}
	if err := tx.Bucket([]byte(settingsBucket)).Put([]byte(settingsKey), data); err != nil {
		return fmt.Errorf("put settings: %w", err)
	}

	if err := tx.DeleteBucket([]byte(cacheBucket)); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	cb, err := tx.CreateBucket([]byte(cacheBucket))
	if err != nil {
		return fmt.Errorf("create cache bucket: %w", err)
	}
	for _, level := range cacheLevels(st) {
		raw, err := encodeEntry(st.CachedPos[level])
		if err != nil {
			return err
		}
		if err := cb.Put([]byte(level), raw); err != nil {
			return fmt.Errorf("put cache entry: %w", err)
		}
	}
	return nil
}
