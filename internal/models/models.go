// ABOUTME: Core data models for positions, privacy settings and the noisy-position cache
// ABOUTME: Provides validation helpers and deep-copy constructors

package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ValidateCoordinates checks if latitude and longitude are within valid ranges.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return fmt.Errorf("coordinates cannot be NaN")
	}
	if math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return fmt.Errorf("coordinates cannot be infinite")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}

// Coordinate is a point on the globe in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Coords mirrors the geolocation coordinates record. Nil pointers mean the
// sensor did not report the value.
type Coords struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Accuracy         *float64 `json:"accuracy"`
	Altitude         *float64 `json:"altitude"`
	AltitudeAccuracy *float64 `json:"altitudeAccuracy"`
	Heading          *float64 `json:"heading"`
	Speed            *float64 `json:"speed"`
}

// Coordinate returns the latitude/longitude pair.
func (c Coords) Coordinate() Coordinate {
	return Coordinate{Latitude: c.Latitude, Longitude: c.Longitude}
}

// Position is a timestamped location fix.
type Position struct {
	Coords    Coords    `json:"coords"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPosition creates a position at the given coordinate with the current timestamp.
func NewPosition(lat, lng float64, accuracy *float64) Position {
	return Position{
		Coords: Coords{
			Latitude:  lat,
			Longitude: lng,
			Accuracy:  accuracy,
		},
		Timestamp: time.Now(),
	}
}

// Validate reports whether the position carries usable coordinates.
func (p *Position) Validate() error {
	if p == nil {
		return fmt.Errorf("position is missing")
	}
	if err := ValidateCoordinates(p.Coords.Latitude, p.Coords.Longitude); err != nil {
		return err
	}
	if p.Coords.Accuracy != nil && (math.IsNaN(*p.Coords.Accuracy) || *p.Coords.Accuracy < 0) {
		return fmt.Errorf("accuracy must be a non-negative number")
	}
	return nil
}

// Clone returns a deep copy so callers never share optional fields.
func (p Position) Clone() Position {
	out := p
	out.Coords.Accuracy = cloneFloat(p.Coords.Accuracy)
	out.Coords.Altitude = cloneFloat(p.Coords.Altitude)
	out.Coords.AltitudeAccuracy = cloneFloat(p.Coords.AltitudeAccuracy)
	out.Coords.Heading = cloneFloat(p.Coords.Heading)
	out.Coords.Speed = cloneFloat(p.Coords.Speed)
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// LevelSpec configures a radius-bearing privacy level.
type LevelSpec struct {
	Radius    float64 `json:"radius" yaml:"radius"`        // meters
	CacheTime float64 `json:"cacheTime" yaml:"cache_time"` // minutes
}

// CacheEntry is the most recently computed noisy position for a level.
type CacheEntry struct {
	Epoch    time.Time `json:"epoch"`
	Position Position  `json:"position"`
}

// Settings is the privacy configuration snapshot, cache included.
type Settings struct {
	Paused         bool                  `json:"paused"`
	DefaultLevel   string                `json:"defaultLevel"`
	DomainLevel    map[string]string     `json:"domainLevel"`
	Epsilon        float64               `json:"epsilon"`
	UpdateAccuracy bool                  `json:"updateAccuracy"`
	FixedPos       Coordinate            `json:"fixedPos"`
	FixedPosLevel  string                `json:"fixedPosLevel"`
	FixedPosNoAPI  bool                  `json:"fixedPosNoAPI"`
	Levels         map[string]LevelSpec  `json:"levels"`
	CachedPos      map[string]CacheEntry `json:"cachedPos,omitempty"`
}

// DefaultSettings returns the settings used when nothing has been stored yet.
func DefaultSettings() *Settings {
	return &Settings{
		Paused:         false,
		DefaultLevel:   "medium",
		DomainLevel:    map[string]string{},
		Epsilon:        2,
		UpdateAccuracy: true,
		FixedPos: Coordinate{
			Latitude:  -4.448784,
			Longitude: -171.24832,
		},
		FixedPosLevel: "medium",
		FixedPosNoAPI: true,
		Levels: map[string]LevelSpec{
			"low":    {Radius: 200, CacheTime: 10},
			"medium": {Radius: 500, CacheTime: 30},
			"high":   {Radius: 2000, CacheTime: 60},
		},
		CachedPos: map[string]CacheEntry{},
	}
}

// Clone returns a deep copy of the settings, cache included.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	out := *s
	out.DomainLevel = make(map[string]string, len(s.DomainLevel))
	for k, v := range s.DomainLevel {
		out.DomainLevel[k] = v
	}
	out.Levels = make(map[string]LevelSpec, len(s.Levels))
	for k, v := range s.Levels {
		out.Levels[k] = v
	}
	out.CachedPos = make(map[string]CacheEntry, len(s.CachedPos))
	for k, v := range s.CachedPos {
		out.CachedPos[k] = CacheEntry{Epoch: v.Epoch, Position: v.Position.Clone()}
	}
	return &out
}

// WithoutCache returns a copy with an empty cache, used for persisting the
// configuration part of the blob.
func (s *Settings) WithoutCache() *Settings {
	out := s.Clone()
	out.CachedPos = map[string]CacheEntry{}
	return out
}

// Normalize fills nil maps so callers can write into them.
func (s *Settings) Normalize() {
	if s.DomainLevel == nil {
		s.DomainLevel = map[string]string{}
	}
	if s.Levels == nil {
		s.Levels = map[string]LevelSpec{}
	}
	if s.CachedPos == nil {
		s.CachedPos = map[string]CacheEntry{}
	}
}

// Geolocation error codes.
const (
	PermissionDenied    = 1
	PositionUnavailable = 2
	Timeout             = 3
)

// PositionError is the failure result of a position fetch.
type PositionError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *PositionError) Error() string {
	switch e.Code {
	case PermissionDenied:
		return "permission denied: " + e.Message
	case PositionUnavailable:
		return "position unavailable: " + e.Message
	case Timeout:
		return "timeout: " + e.Message
	default:
		return fmt.Sprintf("position error %d: %s", e.Code, e.Message)
	}
}

// CallEvent records one served position request. Only the returned
// coordinates are kept; the true fix is never stored.
type CallEvent struct {
	ID         uuid.UUID `json:"id"`
	Origin     string    `json:"origin"`
	Level      string    `json:"level"`
	Outcome    string    `json:"outcome"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewCallEvent creates an event with a generated UUID and the current time.
func NewCallEvent(origin, level, outcome string, pos Position) *CallEvent {
	return &CallEvent{
		ID:         uuid.New(),
		Origin:     origin,
		Level:      level,
		Outcome:    outcome,
		Latitude:   pos.Coords.Latitude,
		Longitude:  pos.Coords.Longitude,
		Accuracy:   cloneFloat(pos.Coords.Accuracy),
		RecordedAt: time.Now(),
	}
}
