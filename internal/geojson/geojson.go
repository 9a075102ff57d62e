// ABOUTME: GeoJSON generation utilities
// ABOUTME: Converts served call events to GeoJSON FeatureCollections

package geojson

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/harper/locguard/internal/models"
)

// FeatureCollection represents a GeoJSON FeatureCollection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature represents a GeoJSON Feature.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry represents a GeoJSON Geometry.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// PointCoordinates represents [longitude, latitude] for a Point.
type PointCoordinates [2]float64

// LineCoordinates represents [[lng, lat], [lng, lat], ...] for a LineString.
type LineCoordinates []PointCoordinates

// ToPointsFeatureCollection converts events to a FeatureCollection of Points.
// The accuracy property, when present, is the radius a map should draw.
func ToPointsFeatureCollection(events []*models.CallEvent) *FeatureCollection {
	features := make([]Feature, 0, len(events))

	for _, ev := range events {
		props := map[string]any{
			"origin":      ev.Origin,
			"level":       ev.Level,
			"outcome":     ev.Outcome,
			"recorded_at": ev.RecordedAt.Format(time.RFC3339),
		}
		if ev.Accuracy != nil {
			props["accuracy"] = *ev.Accuracy
		}

		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: PointCoordinates{ev.Longitude, ev.Latitude},
			},
			Properties: props,
		})
	}

	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}

// ToLineFeatureCollection converts events to one LineString per origin,
// ordered chronologically. Origins with a single event are skipped.
func ToLineFeatureCollection(events []*models.CallEvent) *FeatureCollection {
	byOrigin := make(map[string][]*models.CallEvent)
	for _, ev := range events {
		byOrigin[ev.Origin] = append(byOrigin[ev.Origin], ev)
	}

	origins := make([]string, 0, len(byOrigin))
	for origin := range byOrigin {
		origins = append(origins, origin)
	}
	sort.Strings(origins)

	features := make([]Feature, 0, len(byOrigin))
	for _, origin := range origins {
		originEvents := byOrigin[origin]
		if len(originEvents) < 2 {
			continue
		}
		sort.SliceStable(originEvents, func(i, j int) bool {
			return originEvents[i].RecordedAt.Before(originEvents[j].RecordedAt)
		})

		coords := make(LineCoordinates, len(originEvents))
		for i, ev := range originEvents {
			coords[i] = PointCoordinates{ev.Longitude, ev.Latitude}
		}

		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "LineString",
				Coordinates: coords,
			},
			Properties: map[string]any{
				"origin":      origin,
				"point_count": len(originEvents),
			},
		})
	}

	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}

// ToJSON serializes a FeatureCollection to JSON.
func (fc *FeatureCollection) ToJSON() ([]byte, error) {
	return json.Marshal(fc)
}

// ToJSONIndent serializes a FeatureCollection to indented JSON.
func (fc *FeatureCollection) ToJSONIndent() ([]byte, error) {
	return json.MarshalIndent(fc, "", "  ")
}
