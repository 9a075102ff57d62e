// ABOUTME: Tests for settings backup and markdown export
// ABOUTME: Covers YAML round trips, version and tool checks

package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harper/locguard/internal/level"
	"github.com/harper/locguard/internal/models"
)

func TestExportImportYAML_RoundTrip(t *testing.T) {
	src := testDB(t)
	ctx := context.Background()
	at := time.Date(2024, 12, 14, 10, 0, 0, 0, time.UTC)

	st := models.DefaultSettings()
	st.DefaultLevel = "low"
	st.DomainLevel["maps.example.com"] = "real"
	st.FixedPosLevel = "none"
	st.CachedPos["low"] = cacheEntry(41.8781, -87.6298, at)
	mustNoError(t, src.Save(ctx, st))

	data, err := ExportToYAML(ctx, src)
	if err != nil {
		t.Fatalf("failed to export: %v", err)
	}
	if !strings.Contains(string(data), "tool: locguard") {
		t.Errorf("export missing tool marker:\n%s", data)
	}

	dst := NewMemoryStore()
	if err := ImportFromYAML(ctx, dst, data); err != nil {
		t.Fatalf("failed to import: %v", err)
	}

	got, err := dst.Load(ctx)
	mustNoError(t, err)
	if got.DefaultLevel != "low" || got.DomainLevel["maps.example.com"] != "real" || got.FixedPosLevel != "none" {
		t.Errorf("settings not restored: %+v", got)
	}
	entry, ok := got.CachedPos["low"]
	if !ok || entry.Position.Coords.Latitude != 41.8781 || !entry.Epoch.Equal(at) {
		t.Errorf("cache not restored: %+v", got.CachedPos)
	}
}

func TestImportFromYAML(t *testing.T) {
	db := testDB(t)

	yaml := `version: "1.0"
exported_at: "2026-01-31T12:00:00Z"
tool: locguard
settings:
  paused: false
  default_level: high
  domain_level:
    news.example: low
  epsilon: 2
  update_accuracy: true
  fixed_pos:
    latitude: 10
    longitude: 20
  fixed_pos_level: medium
  fixed_pos_no_api: true
  levels:
    low: {radius: 200, cache_time: 10}
    medium: {radius: 500, cache_time: 30}
    high: {radius: 2000, cache_time: 60}
`

	if err := ImportFromYAML(context.Background(), db, []byte(yaml)); err != nil {
		t.Fatalf("failed to import: %v", err)
	}

	st, err := db.Load(context.Background())
	mustNoError(t, err)
	if st.DefaultLevel != "high" || st.DomainLevel["news.example"] != "low" {
		t.Errorf("unexpected settings %+v", st)
	}
	if st.Levels["high"].CacheTime != 60 || st.FixedPos.Longitude != 20 {
		t.Errorf("unexpected levels or fixed position %+v", st)
	}
}

func TestImportFromYAML_RejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name     string
		epsilon  string
		levelsYA string
	}{
		{"zero_epsilon", "0", "    medium: {radius: 500, cache_time: 30}\n"},
		{"missing_medium", "2", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testDB(t)
			ctx := context.Background()
			before := models.DefaultSettings()
			before.DefaultLevel = "low"
			mustNoError(t, db.Save(ctx, before))

			yaml := `version: "1.0"
tool: locguard
settings:
  default_level: medium
  epsilon: ` + tt.epsilon + `
  fixed_pos_level: none
  levels:
    low: {radius: 200, cache_time: 10}
` + tt.levelsYA + `    high: {radius: 2000, cache_time: 60}
`
			err := ImportFromYAML(ctx, db, []byte(yaml))
			if !errors.Is(err, level.ErrInvalidConfiguration) {
				t.Fatalf("got %v, want ErrInvalidConfiguration", err)
			}

			st, err := db.Load(ctx)
			mustNoError(t, err)
			if st.DefaultLevel != "low" || st.Epsilon != before.Epsilon {
				t.Errorf("stored settings were replaced: %+v", st)
			}
		})
	}
}

func TestImportFromYAML_InvalidVersion(t *testing.T) {
	db := testDB(t)

	yaml := `version: "2.0"
tool: locguard
`

	err := ImportFromYAML(context.Background(), db, []byte(yaml))
	if err == nil {
		t.Error("expected error for invalid version")
	}
}

func TestImportFromYAML_WrongTool(t *testing.T) {
	db := testDB(t)

	yaml := `version: "1.0"
tool: position
`

	err := ImportFromYAML(context.Background(), db, []byte(yaml))
	if err == nil {
		t.Error("expected error for wrong tool")
	}
}

func TestExportToMarkdown(t *testing.T) {
	st := models.DefaultSettings()
	st.Paused = true
	st.DomainLevel["b.example"] = "high"
	st.DomainLevel["a.example"] = "real"

	out := string(ExportToMarkdown(st))

	for _, want := range []string{"# Location Privacy Settings", "Protection: paused", "| low | 200 | 10 |", "| a.example | real |"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "| low |") > strings.Index(out, "| high |") {
		t.Error("levels should be ordered by radius")
	}
	if strings.Index(out, "a.example") > strings.Index(out, "b.example") {
		t.Error("domains should be sorted")
	}
}

func TestExportToMarkdown_NoDomains(t *testing.T) {
	out := string(ExportToMarkdown(models.DefaultSettings()))
	if !strings.Contains(out, "No per-domain levels.") {
		t.Errorf("expected empty domain note:\n%s", out)
	}
}
