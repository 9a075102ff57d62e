// ABOUTME: Data migration between settings storage backends
// ABOUTME: Copies the settings snapshot and cache from source to destination store

package storage

import (
	"context"
	"fmt"
	"os"
)

// MigrateSummary holds counts of migrated entities.
type MigrateSummary struct {
	DomainLevels int
	CacheEntries int
}

// MigrateData copies everything from src to dst, replacing what dst holds.
func MigrateData(ctx context.Context, src, dst Store) (*MigrateSummary, error) {
	if dst.IsReadOnly() {
		return nil, ErrReadOnly
	}

	st, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load source settings: %w", err)
	}

	if err := dst.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("save destination settings: %w", err)
	}

	return &MigrateSummary{
		DomainLevels: len(st.DomainLevel),
		CacheEntries: len(st.CachedPos),
	}, nil
}

// IsDirNonEmpty reports whether path holds data: a directory with any
// entries, or a non-empty file. A missing path holds nothing.
func IsDirNonEmpty(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %q: %w", path, err)
	}
	if !info.IsDir() {
		return info.Size() > 0, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}
