// ABOUTME: Export and import functionality for privacy settings
// ABOUTME: Supports a YAML backup format and a markdown summary

package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harper/locguard/internal/level"
	"github.com/harper/locguard/internal/models"
	"gopkg.in/yaml.v3"
)

// BackupVersion is the current backup format version.
const BackupVersion = "1.0"

// backupTool identifies files written by this tool.
const backupTool = "locguard"

// Backup represents the YAML backup format. Cached noisy positions are
// included so a restore keeps serving the same answers until they expire.
type Backup struct {
	Version    string         `yaml:"version"`
	ExportedAt time.Time      `yaml:"exported_at"`
	Tool       string         `yaml:"tool"`
	Settings   SettingsBackup `yaml:"settings"`
	Cache      []CacheBackup  `yaml:"cache,omitempty"`
}

// SettingsBackup represents the settings in the backup format.
type SettingsBackup struct {
	Paused         bool                        `yaml:"paused"`
	DefaultLevel   string                      `yaml:"default_level"`
	DomainLevel    map[string]string           `yaml:"domain_level,omitempty"`
	Epsilon        float64                     `yaml:"epsilon"`
	UpdateAccuracy bool                        `yaml:"update_accuracy"`
	FixedPos       models.Coordinate           `yaml:"fixed_pos"`
	FixedPosLevel  string                      `yaml:"fixed_pos_level"`
	FixedPosNoAPI  bool                        `yaml:"fixed_pos_no_api"`
	Levels         map[string]models.LevelSpec `yaml:"levels"`
}

// CacheBackup represents one cached level in the backup format.
type CacheBackup struct {
	Level     string    `yaml:"level"`
	Epoch     time.Time `yaml:"epoch"`
	Latitude  float64   `yaml:"latitude"`
	Longitude float64   `yaml:"longitude"`
	Accuracy  *float64  `yaml:"accuracy,omitempty"`
	Timestamp time.Time `yaml:"timestamp"`
}

// ExportToYAML exports the stored settings to YAML format.
func ExportToYAML(ctx context.Context, store Store) ([]byte, error) {
	st, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	backup := Backup{
		Version:    BackupVersion,
		ExportedAt: time.Now().UTC(),
		Tool:       backupTool,
		Settings: SettingsBackup{
			Paused:         st.Paused,
			DefaultLevel:   st.DefaultLevel,
			DomainLevel:    st.DomainLevel,
			Epsilon:        st.Epsilon,
			UpdateAccuracy: st.UpdateAccuracy,
			FixedPos:       st.FixedPos,
			FixedPosLevel:  st.FixedPosLevel,
			FixedPosNoAPI:  st.FixedPosNoAPI,
			Levels:         st.Levels,
		},
	}

	for _, level := range cacheLevels(st) {
		entry := st.CachedPos[level]
		backup.Cache = append(backup.Cache, CacheBackup{
			Level:     level,
			Epoch:     entry.Epoch,
			Latitude:  entry.Position.Coords.Latitude,
			Longitude: entry.Position.Coords.Longitude,
			Accuracy:  entry.Position.Coords.Accuracy,
			Timestamp: entry.Position.Timestamp,
		})
	}

	return yaml.Marshal(backup)
}

// ImportFromYAML restores settings from YAML format, replacing what is stored.
func ImportFromYAML(ctx context.Context, store Store, data []byte) error {
	var backup Backup
	if err := yaml.Unmarshal(data, &backup); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	if backup.Version != BackupVersion {
		return fmt.Errorf("unsupported backup version: %s (expected %s)", backup.Version, BackupVersion)
	}

	if backup.Tool != backupTool {
		return fmt.Errorf("wrong tool: %s (expected %s)", backup.Tool, backupTool)
	}

	b := backup.Settings
	st := &models.Settings{
		Paused:         b.Paused,
		DefaultLevel:   b.DefaultLevel,
		DomainLevel:    b.DomainLevel,
		Epsilon:        b.Epsilon,
		UpdateAccuracy: b.UpdateAccuracy,
		FixedPos:       b.FixedPos,
		FixedPosLevel:  b.FixedPosLevel,
		FixedPosNoAPI:  b.FixedPosNoAPI,
		Levels:         b.Levels,
	}
	st.Normalize()

	for _, c := range backup.Cache {
		st.CachedPos[c.Level] = models.CacheEntry{
			Epoch: c.Epoch,
			Position: models.Position{
				Coords: models.Coords{
					Latitude:  c.Latitude,
					Longitude: c.Longitude,
					Accuracy:  c.Accuracy,
				},
				Timestamp: c.Timestamp,
			},
		}
	}

	if _, err := level.ValidateSettings(st); err != nil {
		return fmt.Errorf("invalid backup: %w", err)
	}

	if err := store.Save(ctx, st); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// ExportToMarkdown renders a human-readable summary of the settings.
func ExportToMarkdown(st *models.Settings) []byte {
	var sb strings.Builder

	now := time.Now().UTC()
	sb.WriteString(fmt.Sprintf("# Location Privacy Settings - %s\n\n", now.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC3339)))

	state := "active"
	if st.Paused {
		state = "paused"
	}
	sb.WriteString(fmt.Sprintf("- Protection: %s\n", state))
	sb.WriteString(fmt.Sprintf("- Default level: %s\n", st.DefaultLevel))
	sb.WriteString(fmt.Sprintf("- Epsilon: %g\n", st.Epsilon))
	sb.WriteString(fmt.Sprintf("- Fixed position: (%.4f, %.4f) at %s\n\n",
		st.FixedPos.Latitude, st.FixedPos.Longitude, st.FixedPosLevel))

	sb.WriteString("## Levels\n\n")
	sb.WriteString("| Level | Radius (m) | Cache (min) |\n")
	sb.WriteString("|-------|------------|-------------|\n")
	names := make([]string, 0, len(st.Levels))
	for name := range st.Levels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return st.Levels[names[i]].Radius < st.Levels[names[j]].Radius
	})
	for _, name := range names {
		spec := st.Levels[name]
		sb.WriteString(fmt.Sprintf("| %s | %g | %g |\n", name, spec.Radius, spec.CacheTime))
	}
	sb.WriteString("\n")

	sb.WriteString("## Domains\n\n")
	if len(st.DomainLevel) == 0 {
		sb.WriteString("No per-domain levels.\n")
		return []byte(sb.String())
	}
	domains := make([]string, 0, len(st.DomainLevel))
	for d := range st.DomainLevel {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	sb.WriteString("| Domain | Level |\n")
	sb.WriteString("|--------|-------|\n")
	for _, d := range domains {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", d, st.DomainLevel[d]))
	}

	return []byte(sb.String())
}
