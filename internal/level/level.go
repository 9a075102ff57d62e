// ABOUTME: Privacy level catalog as a closed variant of real, fixed and radius levels
// ABOUTME: Validates configured levels and settings before any level is resolved

package level

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/harper/locguard/internal/models"
)

// ErrInvalidConfiguration is returned when settings reference unknown levels
// or carry non-positive privacy parameters.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Reserved level names.
const (
	Real = "real"
	// Fixed replaces the true position with the configured fixed coordinate.
	Fixed = "fixed"
	// None disables noise on the fixed coordinate. Only valid as fixedPosLevel.
	None = "none"
)

// RequiredLevels must be present in every catalog.
var RequiredLevels = []string{"low", "medium", "high"}

// Kind discriminates the level variants.
type Kind int

const (
	KindReal Kind = iota
	KindFixed
	KindRadius
)

func (k Kind) String() string {
	switch k {
	case KindReal:
		return "real"
	case KindFixed:
		return "fixed"
	case KindRadius:
		return "radius"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Level is a resolved privacy level. Radius and CacheTTL are only meaningful
// for KindRadius.
type Level struct {
	Name     string
	Kind     Kind
	Radius   float64
	CacheTTL time.Duration
}

// IsRadius reports whether the level perturbs with a calibrated radius.
func (l Level) IsRadius() bool {
	return l.Kind == KindRadius
}

// Catalog maps level names to their definitions.
type Catalog struct {
	levels map[string]Level
}

// maxCacheMinutes is the largest cache time a time.Duration can hold.
const maxCacheMinutes = float64(math.MaxInt64 / int64(time.Minute))

// NewCatalog builds a catalog from configured radius levels.
func NewCatalog(specs map[string]models.LevelSpec) (*Catalog, error) {
	c := &Catalog{levels: make(map[string]Level, len(specs))}

	for name, spec := range specs {
		switch name {
		case Real, Fixed, None:
			return nil, fmt.Errorf("%w: level name %q is reserved", ErrInvalidConfiguration, name)
		}
		if !(spec.Radius > 0) || math.IsInf(spec.Radius, 0) {
			return nil, fmt.Errorf("%w: level %q radius must be positive, got %v", ErrInvalidConfiguration, name, spec.Radius)
		}
		if math.IsNaN(spec.CacheTime) || spec.CacheTime < 0 {
			return nil, fmt.Errorf("%w: level %q cache time must not be negative, got %v", ErrInvalidConfiguration, name, spec.CacheTime)
		}
		if spec.CacheTime > maxCacheMinutes {
			return nil, fmt.Errorf("%w: level %q cache time %v exceeds %v minutes", ErrInvalidConfiguration, name, spec.CacheTime, maxCacheMinutes)
		}
		c.levels[name] = Level{
			Name:     name,
			Kind:     KindRadius,
			Radius:   spec.Radius,
			CacheTTL: time.Duration(spec.CacheTime * float64(time.Minute)),
		}
	}

	for _, name := range RequiredLevels {
		if _, ok := c.levels[name]; !ok {
			return nil, fmt.Errorf("%w: required level %q is missing", ErrInvalidConfiguration, name)
		}
	}

	return c, nil
}

// Lookup resolves a level name, including the reserved real and fixed levels.
func (c *Catalog) Lookup(name string) (Level, error) {
	switch name {
	case Real:
		return Level{Name: Real, Kind: KindReal}, nil
	case Fixed:
		return Level{Name: Fixed, Kind: KindFixed}, nil
	}
	l, ok := c.levels[name]
	if !ok {
		return Level{}, fmt.Errorf("%w: unknown level %q", ErrInvalidConfiguration, name)
	}
	return l, nil
}

// Radius returns the radius in meters of a radius level.
func (c *Catalog) Radius(name string) (float64, error) {
	l, err := c.radiusLevel(name)
	if err != nil {
		return 0, err
	}
	return l.Radius, nil
}

// CacheTTL returns the cache lifetime of a radius level.
func (c *Catalog) CacheTTL(name string) (time.Duration, error) {
	l, err := c.radiusLevel(name)
	if err != nil {
		return 0, err
	}
	return l.CacheTTL, nil
}

func (c *Catalog) radiusLevel(name string) (Level, error) {
	l, err := c.Lookup(name)
	if err != nil {
		return Level{}, err
	}
	if !l.IsRadius() {
		return Level{}, fmt.Errorf("%w: level %q has no radius", ErrInvalidConfiguration, name)
	}
	return l, nil
}

// Levels returns the radius levels ordered by increasing radius.
func (c *Catalog) Levels() []Level {
	out := make([]Level, 0, len(c.levels))
	for _, l := range c.levels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Radius == out[j].Radius {
			return out[i].Name < out[j].Name
		}
		return out[i].Radius < out[j].Radius
	})
	return out
}

// Names returns every selectable level name: real, the radius levels by
// increasing radius, then fixed.
func (c *Catalog) Names() []string {
	names := []string{Real}
	for _, l := range c.Levels() {
		names = append(names, l.Name)
	}
	return append(names, Fixed)
}

// ValidateSettings checks every level reference and privacy parameter in s and
// returns the catalog built from s.Levels.
func ValidateSettings(s *models.Settings) (*Catalog, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: settings are missing", ErrInvalidConfiguration)
	}
	if !(s.Epsilon > 0) || math.IsInf(s.Epsilon, 0) {
		return nil, fmt.Errorf("%w: epsilon must be positive, got %v", ErrInvalidConfiguration, s.Epsilon)
	}

	c, err := NewCatalog(s.Levels)
	if err != nil {
		return nil, err
	}

	if _, err := c.Lookup(s.DefaultLevel); err != nil {
		return nil, fmt.Errorf("default level: %w", err)
	}
	for domain, name := range s.DomainLevel {
		if _, err := c.Lookup(name); err != nil {
			return nil, fmt.Errorf("level for %s: %w", domain, err)
		}
	}
	if _, err := c.FixedLevel(s.FixedPosLevel); err != nil {
		return nil, err
	}
	if err := models.ValidateCoordinates(s.FixedPos.Latitude, s.FixedPos.Longitude); err != nil {
		return nil, fmt.Errorf("%w: fixed position: %v", ErrInvalidConfiguration, err)
	}

	return c, nil
}

// FixedLevel resolves the noise level applied to the fixed position. An empty
// name means medium; None yields a non-radius level named "none".
func (c *Catalog) FixedLevel(name string) (Level, error) {
	if name == "" {
		name = "medium"
	}
	if name == None {
		return Level{Name: None, Kind: KindFixed}, nil
	}
	l, err := c.radiusLevel(name)
	if err != nil {
		return Level{}, fmt.Errorf("fixed position level: %w", err)
	}
	return l, nil
}
