// ABOUTME: Database schema and migrations
// ABOUTME: Defines the table of served position requests

package db

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS call_events (
	id TEXT PRIMARY KEY,
	origin TEXT NOT NULL,
	level TEXT NOT NULL,
	outcome TEXT NOT NULL,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	accuracy REAL,
	recorded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_call_events_origin ON call_events(origin);
CREATE INDEX IF NOT EXISTS idx_call_events_recorded_at ON call_events(recorded_at);
`

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}
