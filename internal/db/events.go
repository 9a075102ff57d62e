// ABOUTME: Database operations for served position requests
// ABOUTME: Records call events and queries them by origin and time

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harper/locguard/internal/models"
)

const eventColumns = `id, origin, level, outcome, latitude, longitude, accuracy, recorded_at`

// CreateEvent inserts a call event.
func CreateEvent(ctx context.Context, db *sql.DB, ev *models.CallEvent) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO call_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.Origin, ev.Level, ev.Outcome,
		ev.Latitude, ev.Longitude, ev.Accuracy, ev.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first. A limit of zero
// or less returns everything.
func ListEvents(ctx context.Context, db *sql.DB, limit int) ([]*models.CallEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM call_events ORDER BY recorded_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return queryEvents(ctx, db, query, args...)
}

// ListEventsByOrigin returns the events for one origin, newest first.
func ListEventsByOrigin(ctx context.Context, db *sql.DB, origin string) ([]*models.CallEvent, error) {
	return queryEvents(ctx, db,
		`SELECT `+eventColumns+` FROM call_events WHERE origin = ? ORDER BY recorded_at DESC`,
		origin,
	)
}

// ListEventsSince returns events recorded at or after since, newest first.
func ListEventsSince(ctx context.Context, db *sql.DB, since time.Time) ([]*models.CallEvent, error) {
	return queryEvents(ctx, db,
		`SELECT `+eventColumns+` FROM call_events WHERE recorded_at >= ? ORDER BY recorded_at DESC`,
		since.UTC(),
	)
}

// DeleteEventsBefore prunes events older than before and returns how many were removed.
func DeleteEventsBefore(ctx context.Context, db *sql.DB, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM call_events WHERE recorded_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}
	return res.RowsAffected()
}

func queryEvents(ctx context.Context, db *sql.DB, query string, args ...any) ([]*models.CallEvent, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.CallEvent
	for rows.Next() {
		var ev models.CallEvent
		var idStr string
		var accuracy sql.NullFloat64
		if err := rows.Scan(&idStr, &ev.Origin, &ev.Level, &ev.Outcome,
			&ev.Latitude, &ev.Longitude, &accuracy, &ev.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.ID, _ = uuid.Parse(idStr)
		if accuracy.Valid {
			v := accuracy.Float64
			ev.Accuracy = &v
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// EventLog records served requests into a history database.
type EventLog struct {
	db *sql.DB
}

// NewEventLog wraps an initialized database.
func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db}
}

// Record stores ev.
func (l *EventLog) Record(ctx context.Context, ev models.CallEvent) error {
	return CreateEvent(ctx, l.db, &ev)
}

// Recent returns up to limit events, newest first.
func (l *EventLog) Recent(ctx context.Context, limit int) ([]*models.CallEvent, error) {
	return ListEvents(ctx, l.db, limit)
}

// Close closes the underlying database.
func (l *EventLog) Close() error {
	return l.db.Close()
}
