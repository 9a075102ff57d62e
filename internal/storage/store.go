// ABOUTME: Settings store interface shared by every persistence backend
// ABOUTME: Also holds the JSON codec used for the settings blob and cache entries

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/harper/locguard/internal/models"
)

// Store persists the privacy settings snapshot and its per-level cache.
//
// Load returns DefaultSettings when nothing has been stored. PutCacheEntry
// replaces one cache entry inside a single transaction and never touches
// other settings fields. Update runs fn against the current snapshot and
// commits the result only if fn returns nil.
type Store interface {
	Load(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, s *models.Settings) error
	Update(ctx context.Context, fn func(*models.Settings) error) error
	PutCacheEntry(ctx context.Context, level string, entry models.CacheEntry) error
	Close() error
	Sync() error
	Reset() error
	IsReadOnly() bool
}

func encodeSettings(s *models.Settings) ([]byte, error) {
	data, err := json.Marshal(s.WithoutCache())
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return data, nil
}

func decodeSettings(data []byte) (*models.Settings, error) {
	s := models.DefaultSettings()
	// Stored blobs carry every field, so decoding over the defaults only
	// fills in what older versions did not write.
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	s.Normalize()
	return s, nil
}

func encodeEntry(entry models.CacheEntry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal cache entry: %w", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (models.CacheEntry, error) {
	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return models.CacheEntry{}, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return entry, nil
}

// cacheLevels returns the cache keys of s in a stable order.
func cacheLevels(s *models.Settings) []string {
	names := make([]string, 0, len(s.CachedPos))
	for name := range s.CachedPos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
