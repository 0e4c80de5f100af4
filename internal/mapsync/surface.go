// Package mapsync keeps a stateful rendering surface in step with the
// declarative layer state. The Synchronizer is the only component allowed to
// create or remove drawables; everything else describes what should be shown
// through state intents.
package mapsync

import (
	"context"
	"errors"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/paulmach/orb"
)

// ErrDrawableGone is returned by RemoveDrawable when the surface no longer
// holds the referenced object. The Synchronizer treats it as success.
var ErrDrawableGone = errors.New("drawable already removed")

// LayerKind groups drawables by what they represent.
type LayerKind string

const (
	LayerIncidentMarkers     LayerKind = "incident_markers"
	LayerIncidentPolygons    LayerKind = "incident_polygons"
	LayerHotspotMarkers      LayerKind = "hotspot_markers"
	LayerDensity             LayerKind = "density"
	LayerPredictedPerimeters LayerKind = "predicted_perimeters"
	LayerProbabilityPoints   LayerKind = "probability_points"
)

// LayerKinds lists every kind in drawing order.
func LayerKinds() []LayerKind {
	return []LayerKind{
		LayerIncidentPolygons,
		LayerPredictedPerimeters,
		LayerDensity,
		LayerHotspotMarkers,
		LayerProbabilityPoints,
		LayerIncidentMarkers,
	}
}

// Ref is an opaque surface-issued reference to a drawable.
type Ref string

// Marker is a point drawable.
type Marker struct {
	Kind          LayerKind
	EntityID      string
	Position      domain.LatLng
	Label         string
	Severity      domain.Severity
	Provider      domain.Provider
	Value         float64
	Confidence    float64
	HasConfidence bool
	Selected      bool
	Clickable     bool
}

// Polygon is an area drawable with one or more outer rings in display order.
type Polygon struct {
	Kind      LayerKind
	EntityID  string
	Rings     [][]domain.LatLng
	Label     string
	Severity  domain.Severity
	Selected  bool
	Clickable bool
}

// WeightedPoint contributes to a density layer.
type WeightedPoint struct {
	Lat    float64
	Lng    float64
	Weight float64
}

// DensityOptions tune the density rendering.
type DensityOptions struct {
	Radius  int
	Blur    int
	MaxZoom int
}

// DefaultDensityOptions match the heat layer settings the map was tuned with.
var DefaultDensityOptions = DensityOptions{Radius: 20, Blur: 15, MaxZoom: 17}

// DensityLayer is a single aggregate drawable built from many points.
type DensityLayer struct {
	Points  []WeightedPoint
	Options DensityOptions
}

// FitOptions bound a view fit.
type FitOptions struct {
	Padding int
	MaxZoom int
}

// Surface is the contract a concrete map widget binding implements.
type Surface interface {
	CreateMarker(m Marker) (Ref, error)
	CreatePolygon(p Polygon) (Ref, error)
	CreateDensityLayer(d DensityLayer) (Ref, error)
	RemoveDrawable(ref Ref) error
	FitViewToBounds(b orb.Bound, opts FitOptions) error
	// OnEntityClicked registers fn for clicks on clickable drawables and
	// returns a function that removes the registration.
	OnEntityClicked(fn func(entityID string)) (unsubscribe func())
}

// ContainerObserver is implemented by surfaces whose container can resize.
type ContainerObserver interface {
	ObserveContainerResize(onResize func()) (stop func())
	InvalidateSize()
}

// PluginLoader loads the external dependency density layers need.
type PluginLoader interface {
	Load(ctx context.Context) error
}

// PluginLoaderFunc adapts a function to PluginLoader.
type PluginLoaderFunc func(ctx context.Context) error

// Load calls f.
func (f PluginLoaderFunc) Load(ctx context.Context) error { return f(ctx) }
