// ABOUTME: SQLite storage implementation for privacy settings
// ABOUTME: Keeps the settings blob and one row per cached level in a pure Go SQLite database

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harper/locguard/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store with a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "locguard", "locguard.db")
}

// NewSQLiteStore creates a new SQLite database at the given path.
// Creates the directory and database file if they don't exist.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil { //nolint:gosec // 0750 is appropriate for user data directory
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes write transactions inside the process.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// migrate creates or updates the database schema.
func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			data TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS cached_positions (
			level TEXT PRIMARY KEY,
			epoch DATETIME NOT NULL,
			data TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Sync is a no-op for local SQLite (no cloud sync).
func (s *SQLiteStore) Sync() error {
	return nil
}

// IsReadOnly always reports false for SQLite.
func (s *SQLiteStore) IsReadOnly() bool {
	return false
}

// Reset clears all data from the database.
func (s *SQLiteStore) Reset() error {
	_, err := s.db.Exec("DELETE FROM cached_positions; DELETE FROM settings;")
	return err
}

// Load reads the settings and every cached level.
func (s *SQLiteStore) Load(ctx context.Context) (*models.Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return loadTx(ctx, tx)
}

// Save replaces the stored settings, cache included.
func (s *SQLiteStore) Save(ctx context.Context, st *models.Settings) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return saveTx(ctx, tx, st)
	})
}

// Update runs fn inside one write transaction.
func (s *SQLiteStore) Update(ctx context.Context, fn func(*models.Settings) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		st, err := loadTx(ctx, tx)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		return saveTx(ctx, tx, st)
	})
}

// PutCacheEntry upserts the cache row for level.
func (s *SQLiteStore) PutCacheEntry(ctx context.Context, level string, entry models.CacheEntry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cached_positions (level, epoch, data) VALUES (?, ?, ?)
		 ON CONFLICT(level) DO UPDATE SET epoch = excluded.epoch, data = excluded.data`,
		level, entry.Epoch.UTC(), string(data),
	)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func loadTx(ctx context.Context, tx *sql.Tx) (*models.Settings, error) {
	var data string
	err := tx.QueryRowContext(ctx, "SELECT data FROM settings WHERE id = 1").Scan(&data)

	var st *models.Settings
	switch {
	case errors.Is(err, sql.ErrNoRows):
		st = models.DefaultSettings()
	case err != nil:
		return nil, fmt.Errorf("query settings: %w", err)
	default:
		st, err = decodeSettings([]byte(data))
		if err != nil {
			return nil, err
		}
	}

	rows, err := tx.QueryContext(ctx, "SELECT level, data FROM cached_positions")
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var level, raw string
		if err := rows.Scan(&level, &raw); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		entry, err := decodeEntry([]byte(raw))
		if err != nil {
			return nil, err
		}
		st.CachedPos[level] = entry
	}
	return st, rows.Err()
}

func saveTx(ctx context.Context, tx *sql.Tx, st *models.Settings) error {
	data, err := encodeSettings(st)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO settings (id, data, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cached_positions"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	for _, level := range cacheLevels(st) {
		entry := st.CachedPos[level]
		raw, err := encodeEntry(entry)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO cached_positions (level, epoch, data) VALUES (?, ?, ?)",
			level, entry.Epoch.UTC(), string(raw),
		); err != nil {
			return fmt.Errorf("insert cache entry: %w", err)
		}
	}
	return nil
}
