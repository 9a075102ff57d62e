// ABOUTME: Core position obfuscation: real, fixed, cached and freshly noised outcomes
// ABOUTME: Pure computation over a settings snapshot; persistence is left to the caller

package obfuscate

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/locguard/internal/cache"
	"github.com/harper/locguard/internal/laplace"
	"github.com/harper/locguard/internal/level"
	"github.com/harper/locguard/internal/models"
	"github.com/harper/locguard/internal/policy"
)

// DefaultConfidence is the fraction of noise mass covered by the reported accuracy.
const DefaultConfidence = 0.9

// fixedNoneAccuracy is the accuracy reported for an unperturbed fixed position.
const fixedNoneAccuracy = 10.0

var (
	// ErrSourceUnavailable wraps a failed true-position fetch.
	ErrSourceUnavailable = errors.New("position source unavailable")

	// ErrMalformedPosition is returned for a true position that cannot be perturbed.
	ErrMalformedPosition = errors.New("malformed position")
)

// Outcome says which branch produced a result.
type Outcome string

const (
	OutcomeReal   Outcome = "real"
	OutcomeFixed  Outcome = "fixed"
	OutcomeCached Outcome = "cached"
	OutcomeFresh  Outcome = "fresh"
)

// Result is the outcome of obfuscating one position.
type Result struct {
	Origin   string
	Position models.Position
	Level    level.Level
	Outcome  Outcome
	// CacheWrite is set when a fresh noisy position was written into the
	// snapshot's cache and must be persisted.
	CacheWrite *models.CacheEntry
	// Displacement is the distance in meters between the input and the result.
	Displacement float64
}

// Option configures an Obfuscator.
type Option func(*Obfuscator)

// WithClock sets the time source used for cache freshness and timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Obfuscator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithConfidence sets the confidence used to inflate reported accuracy.
func WithConfidence(confidence float64) Option {
	return func(o *Obfuscator) {
		o.confidence = confidence
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *Obfuscator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Obfuscator applies the privacy level of an origin to a true position.
type Obfuscator struct {
	mech       *laplace.Mechanism
	now        func() time.Time
	confidence float64
	logger     *log.Logger
}

// New creates an obfuscator drawing noise from mech.
func New(mech *laplace.Mechanism, opts ...Option) (*Obfuscator, error) {
	o := &Obfuscator{
		mech:       mech,
		now:        time.Now,
		confidence: DefaultConfidence,
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(o)
	}
	if mech == nil {
		return nil, errors.New("noise mechanism is required")
	}
	if !(o.confidence > 0 && o.confidence < 1) {
		return nil, fmt.Errorf("%w: accuracy confidence must be in (0,1), got %v", level.ErrInvalidConfiguration, o.confidence)
	}
	return o, nil
}

// ObfuscateFixed returns the configured fixed position, perturbed at the
// fixed position level unless that level is "none".
func (o *Obfuscator) ObfuscateFixed(s *models.Settings) (models.Position, error) {
	catalog, err := level.ValidateSettings(s)
	if err != nil {
		return models.Position{}, err
	}
	return o.fixed(s, catalog)
}

func (o *Obfuscator) fixed(s *models.Settings, catalog *level.Catalog) (models.Position, error) {
	fl, err := catalog.FixedLevel(s.FixedPosLevel)
	if err != nil {
		return models.Position{}, err
	}

	coord := s.FixedPos
	accuracy := fixedNoneAccuracy
	if fl.IsRadius() {
		coord = o.mech.AddNoise(s.Epsilon/fl.Radius, coord)
		accuracy = fl.Radius
	}

	return models.Position{
		Coords: models.Coords{
			Latitude:  coord.Latitude,
			Longitude: coord.Longitude,
			Accuracy:  models.Float(accuracy),
		},
		Timestamp: o.now(),
	}, nil
}

// Obfuscate applies the level resolved for origin to truePos. A fresh noisy
// position is written into s.CachedPos and reported in Result.CacheWrite.
func (o *Obfuscator) Obfuscate(s *models.Settings, origin string, truePos *models.Position) (Result, error) {
	catalog, err := level.ValidateSettings(s)
	if err != nil {
		return Result{}, err
	}
	lvl, err := catalog.Lookup(policy.ResolveLevel(s, origin))
	if err != nil {
		return Result{}, err
	}

	if lvl.Kind == level.KindFixed && !s.Paused {
		pos, err := o.fixed(s, catalog)
		if err != nil {
			return Result{}, err
		}
		return Result{Origin: origin, Position: pos, Level: lvl, Outcome: OutcomeFixed}, nil
	}

	if truePos == nil {
		return Result{}, fmt.Errorf("%w: no position", ErrMalformedPosition)
	}
	if err := truePos.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedPosition, err)
	}

	if s.Paused || lvl.Kind == level.KindReal {
		return Result{Origin: origin, Position: truePos.Clone(), Level: lvl, Outcome: OutcomeReal}, nil
	}

	s.Normalize()
	c := cache.New(s.CachedPos, o.now)
	if cached, ok := c.Get(lvl); ok {
		o.logger.Debug("using cached position", "level", lvl.Name, "origin", origin)
		return Result{
			Origin:       origin,
			Position:     cached,
			Level:        lvl,
			Outcome:      OutcomeCached,
			Displacement: laplace.Distance(truePos.Coords.Coordinate(), cached.Coords.Coordinate()),
		}, nil
	}

	now := o.now()
	eps := s.Epsilon / lvl.Radius
	noisy := o.mech.AddNoise(eps, truePos.Coords.Coordinate())

	out := models.Position{
		Coords: models.Coords{
			Latitude:  noisy.Latitude,
			Longitude: noisy.Longitude,
		},
		Timestamp: now,
	}
	if acc := truePos.Coords.Accuracy; acc != nil {
		v := *acc
		if v != 0 && s.UpdateAccuracy {
			v += math.Round(o.mech.AlphaDeltaAccuracy(eps, o.confidence))
		}
		out.Coords.Accuracy = models.Float(v)
	}

	entry, _ := c.Put(lvl, out, now)
	o.logger.Debug("noisy position computed", "level", lvl.Name, "origin", origin, "epsilon", eps)

	return Result{
		Origin:       origin,
		Position:     out,
		Level:        lvl,
		Outcome:      OutcomeFresh,
		CacheWrite:   &entry,
		Displacement: laplace.Distance(truePos.Coords.Coordinate(), noisy),
	}, nil
}
