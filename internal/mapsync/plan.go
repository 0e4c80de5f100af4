package mapsync

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/geo"
	"github.com/couchcryptid/firesync/internal/state"
)

// densityEntity is the entity id of the single aggregate density drawable.
const densityEntity = "density"

type key struct {
	kind   LayerKind
	entity string
}

// drawSpec describes one desired drawable. Two specs with the same
// fingerprint render identically.
type drawSpec struct {
	fingerprint string
	create      func(Surface) (Ref, error)
}

func markerSpec(m Marker) drawSpec {
	return drawSpec{
		fingerprint: fingerprint(m),
		create:      func(s Surface) (Ref, error) { return s.CreateMarker(m) },
	}
}

func polygonSpec(p Polygon) drawSpec {
	return drawSpec{
		fingerprint: fingerprint(p),
		create:      func(s Surface) (Ref, error) { return s.CreatePolygon(p) },
	}
}

func densitySpec(d DensityLayer) drawSpec {
	return drawSpec{
		fingerprint: fingerprint(d),
		create:      func(s Surface) (Ref, error) { return s.CreateDensityLayer(d) },
	}
}

func fingerprint(v any) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%+v", v)
	return strconv.FormatUint(h.Sum64(), 16)
}

// plan derives the full desired drawable set from a snapshot.
func plan(snap state.Snapshot) map[key]drawSpec {
	desired := make(map[key]drawSpec)

	for _, inc := range snap.Incidents {
		selected := inc.ID == snap.SelectedIncidentID
		desired[key{LayerIncidentMarkers, inc.ID}] = markerSpec(Marker{
			Kind:      LayerIncidentMarkers,
			EntityID:  inc.ID,
			Position:  inc.Centroid,
			Label:     inc.Name,
			Severity:  inc.Severity,
			Value:     float64(inc.SizeAcres),
			Selected:  selected,
			Clickable: true,
		})
		if rings := geo.DisplayRings(inc.Geometry); len(rings) > 0 {
			desired[key{LayerIncidentPolygons, inc.ID}] = polygonSpec(Polygon{
				Kind:      LayerIncidentPolygons,
				EntityID:  inc.ID,
				Rings:     rings,
				Label:     inc.Name,
				Severity:  inc.Severity,
				Selected:  selected,
				Clickable: true,
			})
		}
	}

	switch snap.ViewMode {
	case domain.ViewMarkers:
		for _, h := range snap.VisibleHotspots() {
			id := hotspotEntity(h)
			m := Marker{
				Kind:     LayerHotspotMarkers,
				EntityID: id,
				Position: domain.LatLng{Lat: h.Latitude, Lng: h.Longitude},
				Provider: h.Provider,
				Value:    h.Intensity,
			}
			if h.Confidence != nil {
				m.Confidence, m.HasConfidence = *h.Confidence, true
			}
			desired[key{LayerHotspotMarkers, id}] = markerSpec(m)
		}
	case domain.ViewHeatmap:
		if points := densityPoints(snap.VisibleHotspots()); len(points) > 0 {
			desired[key{LayerDensity, densityEntity}] = densitySpec(DensityLayer{
				Points:  points,
				Options: DefaultDensityOptions,
			})
		}
	}

	if o := snap.Overlays[domain.OverlayPredictedPerimeters]; o.Enabled {
		for _, p := range o.Data.Perimeters {
			rings := geo.DisplayRings(p.Geometry)
			if len(rings) == 0 {
				continue
			}
			desired[key{LayerPredictedPerimeters, p.ID}] = polygonSpec(Polygon{
				Kind:     LayerPredictedPerimeters,
				EntityID: p.ID,
				Rings:    rings,
				Label:    p.Incident,
			})
		}
	}
	if o := snap.Overlays[domain.OverlayPredictionProbability]; o.Enabled {
		for _, p := range o.Data.Points {
			desired[key{LayerProbabilityPoints, p.ID}] = markerSpec(Marker{
				Kind:     LayerProbabilityPoints,
				EntityID: p.ID,
				Position: domain.LatLng{Lat: p.Lat, Lng: p.Lng},
				Value:    p.Probability,
			})
		}
	}

	return desired
}

func hotspotEntity(h domain.Hotspot) string {
	return string(h.Provider) + "/" + h.ID
}

// densityPoints weights each hotspot by confidence and radiative power.
// A provider without confidence counts as fully confident.
func densityPoints(hotspots []domain.Hotspot) []WeightedPoint {
	if len(hotspots) == 0 {
		return nil
	}
	points := make([]WeightedPoint, len(hotspots))
	for i, h := range hotspots {
		points[i] = WeightedPoint{Lat: h.Latitude, Lng: h.Longitude, Weight: DensityWeight(h)}
	}
	return points
}

// DensityWeight is (confidence/100) * (intensity/200).
func DensityWeight(h domain.Hotspot) float64 {
	confidence := 100.0
	if h.Confidence != nil {
		confidence = *h.Confidence
	}
	return (confidence / 100) * (h.Intensity / 200)
}
