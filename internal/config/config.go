// ABOUTME: locguard configuration management with backend selection
// ABOUTME: Handles the config file, environment overrides and the storage backend factory

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/harper/locguard/internal/charm"
	"github.com/harper/locguard/internal/notify"
	"github.com/harper/locguard/internal/storage"
)

// Backend names accepted in the config file.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendBolt   = "bolt"
	BackendCharm  = "charm"
	BackendMemory = "memory"
)

// Position source names accepted in the config file.
const (
	SourceStatic = "static"
	SourceGoogle = "google"
)

// DefaultAccuracyConfidence is used when accuracy_confidence is unset.
const DefaultAccuracyConfidence = 0.9

// Config stores locguard configuration.
type Config struct {
	// Backend selects the settings store: "sqlite" (default), "badger",
	// "bolt", "charm" or "memory".
	Backend string `json:"backend,omitempty" env:"LOCGUARD_BACKEND"`

	// DataDir is the root directory for local data. Supports ~ expansion.
	// Defaults to ~/.local/share/locguard.
	DataDir string `json:"data_dir,omitempty" env:"LOCGUARD_DATA_DIR"`

	// CharmHost is the Charm server used by the charm backend.
	CharmHost string `json:"charm_host,omitempty" env:"CHARM_HOST"`

	LogLevel string `json:"log_level,omitempty" env:"LOCGUARD_LOG_LEVEL"`

	// AccuracyConfidence is the share of noise mass covered by the reported
	// accuracy radius. Zero means DefaultAccuracyConfidence.
	AccuracyConfidence float64 `json:"accuracy_confidence,omitempty" env:"LOCGUARD_ACCURACY_CONFIDENCE"`

	// IframeGeoFromOwnDomain makes framed pages use their own origin instead
	// of the top-level page's.
	IframeGeoFromOwnDomain bool `json:"iframe_geo_from_own_domain,omitempty" env:"LOCGUARD_IFRAME_GEO_FROM_OWN_DOMAIN"`

	// Source selects where true positions come from: "static" (default) or "google".
	Source       string `json:"source,omitempty" env:"LOCGUARD_SOURCE"`
	GoogleAPIKey string `json:"google_api_key,omitempty" env:"GOOGLE_API_KEY"`

	MQTT notify.MQTTConfig `json:"mqtt" envPrefix:"LOCGUARD_MQTT_"`
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return BackendSQLite
	}
	return c.Backend
}

// GetSource returns the configured position source, defaulting to "static".
func (c *Config) GetSource() string {
	if c.Source == "" {
		return SourceStatic
	}
	return c.Source
}

// GetAccuracyConfidence returns the configured confidence or the default.
func (c *Config) GetAccuracyConfidence() float64 {
	if c.AccuracyConfidence == 0 {
		return DefaultAccuracyConfidence
	}
	return c.AccuracyConfidence
}

// GetLogLevel returns the configured log level, defaulting to "info".
func (c *Config) GetLogLevel() string {
	if c.LogLevel == "" {
		return "info"
	}
	return c.LogLevel
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return defaultDataDir()
	}
	return ExpandPath(c.DataDir)
}

// Validate rejects unknown backends and sources and out-of-range confidence.
func (c *Config) Validate() error {
	switch c.GetBackend() {
	case BackendSQLite, BackendBadger, BackendBolt, BackendCharm, BackendMemory:
	default:
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	switch c.GetSource() {
	case SourceStatic:
	case SourceGoogle:
		if c.GoogleAPIKey == "" {
			return errors.New("google source requires google_api_key")
		}
	default:
		return fmt.Errorf("unknown source: %q", c.Source)
	}
	if conf := c.GetAccuracyConfidence(); !(conf > 0 && conf < 1) {
		return fmt.Errorf("accuracy_confidence must be in (0,1), got %v", conf)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("mqtt.enabled requires mqtt.broker")
	}
	return nil
}

// defaultDataDir returns the default XDG data directory for locguard.
func defaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "locguard")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// HistoryDBPath returns the call history database path inside the data directory.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.GetDataDir(), "history.db")
}

// OpenStorage creates the settings store for the configured backend.
func (c *Config) OpenStorage() (storage.Store, error) {
	return c.OpenBackend(c.GetBackend())
}

// OpenBackend creates the settings store for backend inside the data directory.
func (c *Config) OpenBackend(backend string) (storage.Store, error) {
	dataDir := c.GetDataDir()

	switch backend {
	case BackendSQLite:
		return storage.NewSQLiteStore(filepath.Join(dataDir, "locguard.db"))
	case BackendBadger:
		return storage.NewBadgerStore(filepath.Join(dataDir, "badger"))
	case BackendBolt:
		return storage.NewBoltStore(filepath.Join(dataDir, "locguard.bolt"))
	case BackendCharm:
		cfg := charm.DefaultConfig()
		if c.CharmHost != "" {
			cfg.CharmHost = c.CharmHost
		}
		return charm.NewClient(cfg)
	case BackendMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "locguard", "config.json")
}

// Load reads config from disk and applies environment overrides. A missing
// file is created with defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(GetConfigPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg.Backend = BackendSQLite
		if saveErr := cfg.Save(); saveErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save default config: %v\n", saveErr)
		}
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(GetConfigPath(), data)
}

// atomicWrite writes data to a temp file in the target directory and renames
// it into place.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
