// Package state holds the declarative map view. It is a pure reducer over an
// enumerated set of intents; it performs no I/O and no geometry math.
package state

import "github.com/couchcryptid/firesync/internal/domain"

// IncidentStatus describes the outcome of the latest incident fetch.
type IncidentStatus string

const (
	IncidentsIdle   IncidentStatus = "idle"
	IncidentsLoaded IncidentStatus = "loaded"
	IncidentsFailed IncidentStatus = "failed"
)

// HotspotLayer is the hotspot set of one provider.
type HotspotLayer struct {
	Enabled bool
	Points  []domain.Hotspot
}

// Overlay is one derived prediction overlay.
type Overlay struct {
	Enabled bool
	Data    domain.OverlayData
}

// Snapshot is an immutable view of the layer state. Slices and maps reachable
// from a Snapshot must not be modified; Reduce never does.
type Snapshot struct {
	Version            uint64
	Incidents          []domain.FireIncident
	IncidentStatus     IncidentStatus
	IncidentError      string
	Hotspots           map[domain.Provider]HotspotLayer
	ViewMode           domain.ViewMode
	SelectedIncidentID string
	Overlays           map[domain.OverlayKind]Overlay
}

// Initial returns the state before any feed has loaded: every provider
// enabled, marker mode, no selection, overlays off.
func Initial() Snapshot {
	s := Snapshot{
		IncidentStatus: IncidentsIdle,
		Hotspots:       make(map[domain.Provider]HotspotLayer),
		ViewMode:       domain.ViewMarkers,
		Overlays:       make(map[domain.OverlayKind]Overlay),
	}
	for _, p := range domain.Providers() {
		s.Hotspots[p] = HotspotLayer{Enabled: true}
	}
	for _, k := range domain.OverlayKinds() {
		s.Overlays[k] = Overlay{}
	}
	return s
}

// Incident looks up an active incident by id.
func (s Snapshot) Incident(id string) (domain.FireIncident, bool) {
	for _, inc := range s.Incidents {
		if inc.ID == id {
			return inc, true
		}
	}
	return domain.FireIncident{}, false
}

// SelectedIncident returns the selected incident, if any.
func (s Snapshot) SelectedIncident() (domain.FireIncident, bool) {
	if s.SelectedIncidentID == "" {
		return domain.FireIncident{}, false
	}
	return s.Incident(s.SelectedIncidentID)
}

// VisibleHotspots returns the points of every enabled provider, in provider order.
func (s Snapshot) VisibleHotspots() []domain.Hotspot {
	var out []domain.Hotspot
	for _, p := range domain.Providers() {
		layer := s.Hotspots[p]
		if layer.Enabled {
			out = append(out, layer.Points...)
		}
	}
	return out
}

func (s Snapshot) clone() Snapshot {
	next := s
	next.Hotspots = make(map[domain.Provider]HotspotLayer, len(s.Hotspots))
	for k, v := range s.Hotspots {
		next.Hotspots[k] = v
	}
	next.Overlays = make(map[domain.OverlayKind]Overlay, len(s.Overlays))
	for k, v := range s.Overlays {
		next.Overlays[k] = v
	}
	return next
}
