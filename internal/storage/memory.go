// ABOUTME: In-memory settings store for tests and ephemeral sessions
// ABOUTME: Mutex-protected deep copies, nothing is persisted

package storage

import (
	"context"
	"sync"

	"github.com/harper/locguard/internal/models"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	settings *models.Settings
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store that loads as DefaultSettings.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored settings.
func (m *MemoryStore) Load(ctx context.Context) (*models.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current(), nil
}

// Save stores a copy of st.
func (m *MemoryStore) Save(ctx context.Context, st *models.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = st.Clone()
	m.settings.Normalize()
	return nil
}

// Update applies fn under the store lock.
func (m *MemoryStore) Update(ctx context.Context, fn func(*models.Settings) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.current()
	if err := fn(next); err != nil {
		return err
	}
	m.settings = next
	return nil
}

// PutCacheEntry replaces one cache entry.
func (m *MemoryStore) PutCacheEntry(ctx context.Context, level string, entry models.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		m.settings = models.DefaultSettings()
	}
	m.settings.CachedPos[level] = models.CacheEntry{Epoch: entry.Epoch, Position: entry.Position.Clone()}
	return nil
}

func (m *MemoryStore) current() *models.Settings {
	if m.settings == nil {
		return models.DefaultSettings()
	}
	return m.settings.Clone()
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Sync is a no-op.
func (m *MemoryStore) Sync() error { return nil }

// IsReadOnly always reports false.
func (m *MemoryStore) IsReadOnly() bool { return false }

// Reset forgets everything.
func (m *MemoryStore) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = nil
	return nil
}
