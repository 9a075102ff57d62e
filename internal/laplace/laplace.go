// ABOUTME: Planar Laplace noise mechanism for geographic coordinates
// ABOUTME: Samples calibrated 2D displacements and computes accuracy bounds

// Package laplace implements the planar Laplace mechanism used to obfuscate
// coordinates. Epsilon is expressed per meter: a level with radius R under a
// global privacy budget E uses epsilon = E / R.
package laplace

import (
	"io"
	"math"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/harper/locguard/internal/models"
)

const (
	// MetersPerDegree is the equirectangular length of one degree of latitude.
	MetersPerDegree = 111320.0

	// MinEpsilon is the floor applied to degenerate privacy parameters.
	MinEpsilon = 1e-9

	minCosLatitude = 1e-9

	// medianFactor is -(W₋₁(-1/(2e)) + 1), the median radius times epsilon.
	medianFactor = 1.6783469900166612

	maxP = 1 - 1e-15
)

// Mechanism draws planar Laplace noise from an injected uniform source.
type Mechanism struct {
	mu     sync.Mutex
	src    Source
	logger *log.Logger
}

// New creates a mechanism. A nil logger discards degeneracy reports.
func New(src Source, logger *log.Logger) *Mechanism {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Mechanism{src: src, logger: logger}
}

func (m *Mechanism) uniform() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.src.Float64()
}

// AddNoise returns center displaced by a planar Laplace sample for epsilon.
// The result always lies in [-90,90] x [-180,180).
func (m *Mechanism) AddNoise(epsilon float64, center models.Coordinate) models.Coordinate {
	dx, dy := m.Displacement(epsilon)
	out, floored := Translate(center, dx, dy)
	if floored {
		m.logger.Debug("cosine of latitude floored near pole", "latitude", center.Latitude)
	}
	return out
}

// Displacement samples an (east, north) offset in meters.
func (m *Mechanism) Displacement(epsilon float64) (float64, float64) {
	eps := m.sanitizeEpsilon(epsilon)
	theta := m.uniform() * 2 * math.Pi
	r := m.radius(eps, m.uniform())
	return r * math.Cos(theta), r * math.Sin(theta)
}

// AlphaDeltaAccuracy returns the radius that contains a fraction confidence of
// the noise mass.
func (m *Mechanism) AlphaDeltaAccuracy(epsilon, confidence float64) float64 {
	return m.radius(m.sanitizeEpsilon(epsilon), confidence)
}

func (m *Mechanism) sanitizeEpsilon(epsilon float64) float64 {
	if math.IsNaN(epsilon) || epsilon < MinEpsilon {
		m.logger.Warn("epsilon below floor, clamping", "epsilon", epsilon, "floor", MinEpsilon)
		return MinEpsilon
	}
	return epsilon
}

func (m *Mechanism) radius(epsilon, p float64) float64 {
	r, ok := inverseCumulativeGamma(epsilon, p)
	if !ok {
		m.logger.Warn("lambert W did not converge, using median radius", "epsilon", epsilon, "p", p)
	}
	return r
}

// InverseCumulativeGamma inverts the planar Laplace radial CDF
// C(r) = 1 - (1 + epsilon*r) * exp(-epsilon*r).
func InverseCumulativeGamma(epsilon, p float64) float64 {
	r, _ := inverseCumulativeGamma(epsilon, p)
	return r
}

func inverseCumulativeGamma(epsilon, p float64) (float64, bool) {
	if math.IsNaN(epsilon) || epsilon < MinEpsilon {
		epsilon = MinEpsilon
	}
	switch {
	case math.IsNaN(p):
		return medianFactor / epsilon, false
	case p <= 0:
		return 0, true
	case p > maxP:
		p = maxP
	}

	w, ok := LambertWm1((p - 1) / math.E)
	r := -(w + 1) / epsilon
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return medianFactor / epsilon, false
	}
	return r, ok
}

// AlphaDeltaAccuracy is the stateless form of Mechanism.AlphaDeltaAccuracy.
func AlphaDeltaAccuracy(epsilon, confidence float64) float64 {
	return InverseCumulativeGamma(epsilon, confidence)
}

// Translate moves center by dx meters east and dy meters north using a local
// equirectangular approximation. The second result reports whether the
// cosine of the latitude had to be floored.
func Translate(center models.Coordinate, dx, dy float64) (models.Coordinate, bool) {
	cosLat := math.Cos(center.Latitude * math.Pi / 180)
	floored := false
	if math.Abs(cosLat) < minCosLatitude {
		cosLat = minCosLatitude
		floored = true
	}

	lat := center.Latitude + dy/MetersPerDegree
	lng := center.Longitude + dx/(MetersPerDegree*cosLat)

	return models.Coordinate{
		Latitude:  ClampLatitude(lat),
		Longitude: WrapLongitude(lng),
	}, floored
}

// Distance is the equirectangular distance in meters between two coordinates,
// the inverse of Translate for small offsets.
func Distance(a, b models.Coordinate) float64 {
	meanLat := (a.Latitude + b.Latitude) / 2 * math.Pi / 180
	dLng := WrapLongitude(b.Longitude - a.Longitude)
	dx := dLng * MetersPerDegree * math.Cos(meanLat)
	dy := (b.Latitude - a.Latitude) * MetersPerDegree
	return math.Hypot(dx, dy)
}

// ClampLatitude limits lat to [-90, 90].
func ClampLatitude(lat float64) float64 {
	if math.IsNaN(lat) {
		return 0
	}
	return math.Max(-90, math.Min(90, lat))
}

// WrapLongitude maps lng into [-180, 180).
func WrapLongitude(lng float64) float64 {
	if math.IsNaN(lng) || math.IsInf(lng, 0) {
		return 0
	}
	m := math.Mod(lng+180, 360)
	if m < 0 {
		m += 360
	}
	out := m - 180
	if out >= 180 {
		out -= 360
	}
	return out
}
