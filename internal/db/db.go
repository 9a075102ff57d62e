// ABOUTME: SQLite connection setup for the call history database
// ABOUTME: Resolves the XDG data path, creates directories and runs migrations

package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// InitDB opens the history database at path and applies the schema.
func InitDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil { //nolint:gosec // user data directory
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// GetDefaultDBPath returns the history database path under XDG_DATA_HOME.
func GetDefaultDBPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	if abs, err := filepath.Abs(dataHome); err == nil {
		dataHome = abs
	}
	return filepath.Join(dataHome, "locguard", "history.db")
}
