// ABOUTME: Tests for call event persistence
// ABOUTME: Covers insert, ordering, filters, pruning and the EventLog recorder

package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/harper/locguard/internal/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func eventAt(origin, outcome string, at time.Time, accuracy *float64) *models.CallEvent {
	ev := models.NewCallEvent(origin, "medium", outcome, models.NewPosition(45, 9, accuracy))
	ev.RecordedAt = at
	return ev
}

func TestCreateAndListEvents(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	first := eventAt("a.example", "fresh", base, models.Float(537))
	second := eventAt("b.example", "cached", base.Add(time.Minute), nil)
	for _, ev := range []*models.CallEvent{first, second} {
		if err := CreateEvent(ctx, db, ev); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}

	events, err := ListEvents(ctx, db, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ID != second.ID {
		t.Error("expected newest first")
	}
	if events[0].Accuracy != nil {
		t.Error("expected nil accuracy to round-trip")
	}
	if events[1].Accuracy == nil || *events[1].Accuracy != 537 {
		t.Errorf("accuracy = %v, want 537", events[1].Accuracy)
	}
	if !events[1].RecordedAt.Equal(base) {
		t.Errorf("recorded_at = %v, want %v", events[1].RecordedAt, base)
	}

	limited, err := ListEvents(ctx, db, 1)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d events", len(limited))
	}
}

func TestListEventsByOriginAndSince(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, origin := range []string{"a.example", "b.example", "a.example"} {
		if err := CreateEvent(ctx, db, eventAt(origin, "fresh", base.Add(time.Duration(i)*time.Hour), nil)); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}

	byOrigin, err := ListEventsByOrigin(ctx, db, "a.example")
	if err != nil {
		t.Fatalf("ListEventsByOrigin: %v", err)
	}
	if len(byOrigin) != 2 {
		t.Errorf("got %d events for a.example, want 2", len(byOrigin))
	}

	since, err := ListEventsSince(ctx, db, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListEventsSince: %v", err)
	}
	if len(since) != 2 {
		t.Errorf("got %d events since +1h, want 2", len(since))
	}
}

func TestDeleteEventsBefore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := CreateEvent(ctx, db, eventAt("a.example", "fresh", base.Add(time.Duration(i)*24*time.Hour), nil)); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}

	n, err := DeleteEventsBefore(ctx, db, base.Add(36*time.Hour))
	if err != nil {
		t.Fatalf("DeleteEventsBefore: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d events, want 2", n)
	}
}

func TestEventLog_Record(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	ctx := context.Background()

	ev := eventAt("maps.example", "real", time.Now().UTC(), nil)
	if err := log.Record(ctx, *ev); err != nil {
		t.Fatalf("Record: %v", err)
	}

	recent, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Origin != "maps.example" || recent[0].Outcome != "real" {
		t.Errorf("unexpected events %+v", recent)
	}
}
