package domain

import "github.com/paulmach/orb"

// ViewMode selects how hotspots are drawn. It applies to all providers at once.
type ViewMode string

const (
	ViewMarkers ViewMode = "markers"
	ViewHeatmap ViewMode = "heatmap"
)

// Valid reports whether m is a known view mode.
func (m ViewMode) Valid() bool {
	return m == ViewMarkers || m == ViewHeatmap
}

// OverlayKind names a derived prediction overlay.
type OverlayKind string

const (
	OverlayPredictedPerimeters   OverlayKind = "predicted_perimeters"
	OverlayPredictionProbability OverlayKind = "prediction_probability"
)

// OverlayKinds lists every overlay kind.
func OverlayKinds() []OverlayKind {
	return []OverlayKind{OverlayPredictedPerimeters, OverlayPredictionProbability}
}

// Valid reports whether k is a known overlay kind.
func (k OverlayKind) Valid() bool {
	return k == OverlayPredictedPerimeters || k == OverlayPredictionProbability
}

// PredictedPerimeter is one forecast perimeter polygon.
type PredictedPerimeter struct {
	ID       string       `json:"id"`
	Incident string       `json:"incident"`
	Geometry orb.Geometry `json:"-"`
}

// ProbabilityPoint is one forecast ignition-probability sample.
type ProbabilityPoint struct {
	ID          string  `json:"id"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Probability float64 `json:"probability"`
}

// OverlayData holds the payload of an overlay. Only the field matching the
// overlay kind is populated.
type OverlayData struct {
	Perimeters []PredictedPerimeter `json:"perimeters,omitempty"`
	Points     []ProbabilityPoint   `json:"points,omitempty"`
}
