// ABOUTME: Tests for the true-position sources
// ABOUTME: Uses an httptest server standing in for the Geolocation API

package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harper/locguard/internal/models"
	"googlemaps.github.io/maps"
)

func TestStatic_Fetch(t *testing.T) {
	s := NewStatic(45.5, 9.2, models.Float(15))

	pos, err := s.Fetch(context.Background(), FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if pos.Coords.Latitude != 45.5 || pos.Coords.Longitude != 9.2 || *pos.Coords.Accuracy != 15 {
		t.Errorf("unexpected position %+v", pos.Coords)
	}

	*pos.Coords.Accuracy = 1
	again, _ := s.Fetch(context.Background(), FetchOptions{})
	if *again.Coords.Accuracy != 15 {
		t.Error("Fetch returned an aliased position")
	}
}

func TestStatic_InvalidAndCancelled(t *testing.T) {
	s := NewStatic(120, 0, nil)
	_, err := s.Fetch(context.Background(), FetchOptions{})
	var perr *models.PositionError
	if !errors.As(err, &perr) || perr.Code != models.PositionUnavailable {
		t.Errorf("expected position unavailable, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewStatic(1, 1, nil).Fetch(ctx, FetchOptions{})
	if !errors.As(err, &perr) || perr.Code != models.Timeout {
		t.Errorf("expected timeout, got %v", err)
	}
}

func TestNewGoogle_RequiresKey(t *testing.T) {
	if _, err := NewGoogle(""); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestGoogle_FetchAndMaximumAge(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"location":{"lat":51.5,"lng":-0.12},"accuracy":1200}`))
	}))
	defer srv.Close()

	g, err := NewGoogle("test-key", maps.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewGoogle: %v", err)
	}

	pos, err := g.Fetch(context.Background(), FetchOptions{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if pos.Coords.Latitude != 51.5 || pos.Coords.Longitude != -0.12 || *pos.Coords.Accuracy != 1200 {
		t.Errorf("unexpected position %+v", pos.Coords)
	}

	if _, err := g.Fetch(context.Background(), FetchOptions{MaximumAge: time.Minute}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected cached fix within maximum age, got %d API calls", hits.Load())
	}

	if _, err := g.Fetch(context.Background(), FetchOptions{}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected a new API call without maximum age, got %d", hits.Load())
	}
}

func TestGoogle_FailureIsPositionUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"notFound","errors":[{"domain":"geolocation","reason":"notFound","message":"notFound"}]}}`))
	}))
	defer srv.Close()

	g, err := NewGoogle("test-key", maps.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewGoogle: %v", err)
	}

	_, err = g.Fetch(context.Background(), FetchOptions{})
	var perr *models.PositionError
	if !errors.As(err, &perr) || perr.Code != models.PositionUnavailable {
		t.Errorf("expected position unavailable, got %v", err)
	}
}
