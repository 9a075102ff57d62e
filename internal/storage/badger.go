// ABOUTME: Badger storage implementation for privacy settings
// ABOUTME: Stores the settings blob and cache entries under prefixed keys

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/harper/locguard/internal/models"
)

const (
	badgerSettingsKey = "settings"
	badgerCachePrefix = "cache:"

	// maxConflictRetries bounds optimistic transaction retries.
	maxConflictRetries = 5
)

// BadgerStore implements Store on a Badger database.
type BadgerStore struct {
	// mu serializes writers in this process; other processes are handled
	// by conflict retries.
	mu sync.Mutex
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens a Badger database in dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil { //nolint:gosec // user data directory
		return nil, fmt.Errorf("create directory: %w", err)
	}
	return openBadger(badger.DefaultOptions(dir))
}

// NewInMemoryBadgerStore opens a Badger database that lives only in memory.
func NewInMemoryBadgerStore() (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true))
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Sync flushes pending writes to disk.
func (s *BadgerStore) Sync() error {
	return s.db.Sync()
}

// IsReadOnly reports whether the database was opened read-only.
func (s *BadgerStore) IsReadOnly() bool {
	return s.db.Opts().ReadOnly
}

// Reset deletes every key.
func (s *BadgerStore) Reset() error {
	return s.db.DropAll()
}

// Load reads the settings and cache in one read transaction.
func (s *BadgerStore) Load(ctx context.Context) (*models.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var st *models.Settings
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		st, err = badgerLoad(txn)
		return err
	})
	return st, err
}

// Save replaces the settings and cache.
func (s *BadgerStore) Save(ctx context.Context, st *models.Settings) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return badgerSave(txn, st)
	})
}

// Update runs fn inside one write transaction, retrying on conflicts.
func (s *BadgerStore) Update(ctx context.Context, fn func(*models.Settings) error) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		st, err := badgerLoad(txn)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		return badgerSave(txn, st)
	})
}

// PutCacheEntry writes a single cache key.
func (s *BadgerStore) PutCacheEntry(ctx context.Context, level string, entry models.CacheEntry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerCachePrefix+level), data)
	})
}

func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("update after %d attempts: %w", maxConflictRetries, err)
}

func badgerLoad(txn *badger.Txn) (*models.Settings, error) {
	st := models.DefaultSettings()

	item, err := txn.Get([]byte(badgerSettingsKey))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return nil, fmt.Errorf("get settings: %w", err)
	default:
		data, err := item.ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
		st, err = decodeSettings(data)
		if err != nil {
			return nil, err
		}
	}

	prefix := []byte(badgerCachePrefix)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		level := string(item.Key()[len(prefix):])
		data, err := item.ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("read cache entry: %w", err)
		}
		entry, err := decodeEntry(data)
		if err != nil {
			return nil, err
		}
		st.CachedPos[level] = entry
	}
	return st, nil
}

func badgerSave(txn *badger.Txn, st *models.Settings) error {
	data, err := encodeSettings(st)
	if err != nil {
		return err
	}
	if err := txn.Set([]byte(badgerSettingsKey), data); err != nil {
		return fmt.Errorf("set settings: %w", err)
	}

	prefix := []byte(badgerCachePrefix)
	var stale [][]byte
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		stale = append(stale, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, key := range stale {
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete cache entry: %w", err)
		}
	}

	for _, level := range cacheLevels(st) {
		raw, err := encodeEntry(st.CachedPos[level])
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(badgerCachePrefix+level), raw); err != nil {
			return fmt.Errorf("set cache entry: %w", err)
		}
	}
	return nil
}
