// ABOUTME: Settings store backed by Charm KV with cloud sync
// ABOUTME: Keeps the settings blob and per-level cache entries under separate keys

package charm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/charm/kv"
	"github.com/harper/locguard/internal/models"
	"github.com/harper/locguard/internal/storage"
)

// Compile-time check that Client implements storage.Store.
var _ storage.Store = (*Client)(nil)

// Load reads the settings and every cached level.
func (c *Client) Load(ctx context.Context) (*models.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var st *models.Settings
	err := c.DoReadOnly(func(k *kv.KV) error {
		var err error
		st, err = loadSettings(k)
		return err
	})
	return st, err
}

// Save replaces the settings and cache.
func (c *Client) Save(ctx context.Context, st *models.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Do(func(k *kv.KV) error {
		if k.IsReadOnly() {
			return storage.ErrReadOnly
		}
		return saveSettings(k, st)
	})
}

// Update runs fn while holding the database open for writing.
func (c *Client) Update(ctx context.Context, fn func(*models.Settings) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Do(func(k *kv.KV) error {
		if k.IsReadOnly() {
			return storage.ErrReadOnly
		}
		st, err := loadSettings(k)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		return saveSettings(k, st)
	})
}

// PutCacheEntry writes a single cache key.
func (c *Client) PutCacheEntry(ctx context.Context, level string, entry models.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return c.Do(func(k *kv.KV) error {
		if k.IsReadOnly() {
			return storage.ErrReadOnly
		}
		return k.Set([]byte(CachePrefix+level), data)
	})
}

// IsReadOnly reports whether another process currently holds the write lock.
func (c *Client) IsReadOnly() bool {
	readOnly := true
	err := kv.Do(c.dbName, func(k *kv.KV) error {
		readOnly = k.IsReadOnly()
		return nil
	})
	return err != nil || readOnly
}

func loadSettings(k *kv.KV) (*models.Settings, error) {
	st := models.DefaultSettings()

	data, err := k.Get([]byte(SettingsKey))
	switch {
	case errors.Is(err, kv.ErrMissingKey):
	case err != nil:
		return nil, fmt.Errorf("get settings: %w", err)
	default:
		if err := json.Unmarshal(data, st); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
		st.Normalize()
	}

	keys, err := k.Keys()
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	prefix := []byte(CachePrefix)
	for _, key := range keys {
		if !bytes.HasPrefix(key, prefix) {
			continue
		}
		raw, err := k.Get(key)
		if err != nil {
			return nil, fmt.Errorf("get cache entry %s: %w", key, err)
		}
		var entry models.CacheEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("unmarshal cache entry: %w", err)
		}
		st.CachedPos[string(key[len(prefix):])] = entry
	}
	return st, nil
}

func saveSettings(k *kv.KV, st *models.Settings) error {
	data, err := json.Marshal(st.WithoutCache())
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := k.Set([]byte(SettingsKey), data); err != nil {
		return fmt.Errorf("set settings: %w", err)
	}

	keys, err := k.Keys()
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	for _, key := range keys {
		if bytes.HasPrefix(key, []byte(CachePrefix)) {
			if err := k.Delete(key); err != nil {
				return fmt.Errorf("delete cache entry: %w", err)
			}
		}
	}

	for level, entry := range st.CachedPos {
		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal cache entry: %w", err)
		}
		if err := k.Set([]byte(CachePrefix+level), raw); err != nil {
			return fmt.Errorf("set cache entry: %w", err)
		}
	}
	return nil
}
