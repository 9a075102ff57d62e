// ABOUTME: True-position sources consumed by the obfuscation service
// ABOUTME: Defines the fetch contract and a static source fed from CLI flags

package source

import (
	"context"
	"time"

	"github.com/harper/locguard/internal/models"
)

// FetchOptions mirrors the options a page passes with a position request.
type FetchOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// Source produces the true device position. Failures are *models.PositionError.
type Source interface {
	Fetch(ctx context.Context, opts FetchOptions) (models.Position, error)
}

// Static always returns the same fix, stamped at fetch time.
type Static struct {
	Position models.Position
}

// NewStatic creates a static source.
func NewStatic(lat, lng float64, accuracy *float64) *Static {
	return &Static{Position: models.NewPosition(lat, lng, accuracy)}
}

// Fetch implements Source.
func (s *Static) Fetch(ctx context.Context, _ FetchOptions) (models.Position, error) {
	if err := ctx.Err(); err != nil {
		return models.Position{}, &models.PositionError{Code: models.Timeout, Message: err.Error()}
	}
	pos := s.Position.Clone()
	pos.Timestamp = time.Now()
	if err := pos.Validate(); err != nil {
		return models.Position{}, &models.PositionError{Code: models.PositionUnavailable, Message: err.Error()}
	}
	return pos, nil
}

// Func adapts a function to Source.
type Func func(ctx context.Context, opts FetchOptions) (models.Position, error)

// Fetch implements Source.
func (f Func) Fetch(ctx context.Context, opts FetchOptions) (models.Position, error) {
	return f(ctx, opts)
}
