// ABOUTME: Privacy policy resolution per requesting origin
// ABOUTME: Picks the effective level and decides when the real location may be used

package policy

import (
	"github.com/harper/locguard/internal/level"
	"github.com/harper/locguard/internal/models"
)

// ResolveLevel returns the level name configured for origin, falling back to
// the default level.
func ResolveLevel(s *models.Settings, origin string) string {
	if name, ok := s.DomainLevel[origin]; ok {
		return name
	}
	return s.DefaultLevel
}

// IsRealLocationPermitted reports whether origin may use the unmodified
// location. Frames are always routed through the noise path.
func IsRealLocationPermitted(s *models.Settings, origin string, inFrame bool) bool {
	return !inFrame && (s.Paused || ResolveLevel(s, origin) == level.Real)
}

// Resolver resolves levels and signals call accounting.
type Resolver struct {
	tracker *Tracker
}

// NewResolver creates a resolver. tracker may be nil.
func NewResolver(tracker *Tracker) *Resolver {
	return &Resolver{tracker: tracker}
}

// Level resolves the effective level for origin through catalog.
func (r *Resolver) Level(s *models.Settings, catalog *level.Catalog, origin string) (level.Level, error) {
	return catalog.Lookup(ResolveLevel(s, origin))
}

// WatchAllowed reports whether the real continuous location may be used for
// call. A permitted call that is not merely the initial check is counted.
func (r *Resolver) WatchAllowed(s *models.Settings, call CallContext, firstCall bool) bool {
	origin := ExtractDomain(call.URL)
	allowed := IsRealLocationPermitted(s, origin, call.InFrame)
	if allowed && !firstCall && r.tracker != nil {
		r.tracker.Record(call, origin)
	}
	return allowed
}
