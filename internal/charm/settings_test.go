// ABOUTME: Tests for the Charm KV settings store
// ABOUTME: Runs against a local KV database without network access

package charm

import (
	"context"
	"testing"
	"time"

	"github.com/harper/locguard/internal/models"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, name string) *Client {
	t.Helper()
	t.Setenv("CHARM_DATA_DIR", t.TempDir())

	client, err := NewTestClient(name)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLoad_DefaultsWhenEmpty(t *testing.T) {
	client := testClient(t, "locguard-empty")

	st, err := client.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "medium", st.DefaultLevel)
	require.Empty(t, st.CachedPos)
}

func TestSaveAndLoad(t *testing.T) {
	client := testClient(t, "locguard-save")
	ctx := context.Background()
	at := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

	in := models.DefaultSettings()
	in.DefaultLevel = "high"
	in.DomainLevel["maps.example.com"] = "real"
	in.CachedPos["high"] = models.CacheEntry{Epoch: at, Position: models.NewPosition(45, 9, models.Float(2100))}
	require.NoError(t, client.Save(ctx, in))

	out, err := client.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "high", out.DefaultLevel)
	require.Equal(t, "real", out.DomainLevel["maps.example.com"])
	require.Contains(t, out.CachedPos, "high")
	require.True(t, out.CachedPos["high"].Epoch.Equal(at))
}

func TestPutCacheEntry_KeepsSettings(t *testing.T) {
	client := testClient(t, "locguard-cache")
	ctx := context.Background()

	require.NoError(t, client.Update(ctx, func(st *models.Settings) error {
		st.Paused = true
		st.CachedPos["low"] = models.CacheEntry{Epoch: time.Now(), Position: models.NewPosition(1, 1, nil)}
		return nil
	}))
	require.NoError(t, client.PutCacheEntry(ctx, "medium", models.CacheEntry{
		Epoch:    time.Now(),
		Position: models.NewPosition(45, 9, models.Float(530)),
	}))

	out, err := client.Load(ctx)
	require.NoError(t, err)
	require.True(t, out.Paused)
	require.Contains(t, out.CachedPos, "low")
	require.Equal(t, 45.0, out.CachedPos["medium"].Position.Coords.Latitude)
}

func TestSave_ReplacesCache(t *testing.T) {
	client := testClient(t, "locguard-replace")
	ctx := context.Background()

	st := models.DefaultSettings()
	st.CachedPos["low"] = models.CacheEntry{Epoch: time.Now(), Position: models.NewPosition(1, 1, nil)}
	require.NoError(t, client.Save(ctx, st))

	delete(st.CachedPos, "low")
	require.NoError(t, client.Save(ctx, st))

	out, err := client.Load(ctx)
	require.NoError(t, err)
	require.NotContains(t, out.CachedPos, "low")
}
