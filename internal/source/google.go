// ABOUTME: Google Geolocation API source for the true position
// ABOUTME: Resolves an IP-based fix and honors timeout and maximum age options

package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harper/locguard/internal/models"
	"googlemaps.github.io/maps"
)

// Google fetches the true position from the Google Geolocation API.
type Google struct {
	client *maps.Client
	now    func() time.Time

	mu   sync.Mutex
	last *models.Position
}

// NewGoogle creates a Google source. Extra client options are passed through.
func NewGoogle(apiKey string, opts ...maps.ClientOption) (*Google, error) {
	if apiKey == "" {
		return nil, errors.New("google api key is required")
	}
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}
	return &Google{client: client, now: time.Now}, nil
}

// Fetch implements Source. A previous fix younger than opts.MaximumAge is
// returned without an API call.
func (g *Google) Fetch(ctx context.Context, opts FetchOptions) (models.Position, error) {
	if cached, ok := g.recent(opts.MaximumAge); ok {
		return cached, nil
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	resp, err := g.client.Geolocate(ctx, &maps.GeolocationRequest{ConsiderIP: true})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Position{}, &models.PositionError{Code: models.Timeout, Message: err.Error()}
		}
		return models.Position{}, &models.PositionError{Code: models.PositionUnavailable, Message: err.Error()}
	}

	pos := models.Position{
		Coords: models.Coords{
			Latitude:  resp.Location.Lat,
			Longitude: resp.Location.Lng,
			Accuracy:  models.Float(resp.Accuracy),
		},
		Timestamp: g.now(),
	}
	if err := pos.Validate(); err != nil {
		return models.Position{}, &models.PositionError{Code: models.PositionUnavailable, Message: err.Error()}
	}

	g.mu.Lock()
	stored := pos.Clone()
	g.last = &stored
	g.mu.Unlock()

	return pos, nil
}

func (g *Google) recent(maxAge time.Duration) (models.Position, bool) {
	if maxAge <= 0 {
		return models.Position{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last == nil {
		return models.Position{}, false
	}
	age := g.now().Sub(g.last.Timestamp)
	if age < 0 || age >= maxAge {
		return models.Position{}, false
	}
	return g.last.Clone(), true
}
