package state

import (
	"errors"
	"fmt"
	"slices"

	"github.com/couchcryptid/firesync/internal/domain"
)

var (
	// ErrInvalidIntent is returned for intents naming an unknown provider,
	// view mode or overlay kind.
	ErrInvalidIntent = errors.New("invalid intent")
	// ErrUnknownIncident is returned when selecting an id that is not active.
	ErrUnknownIncident = errors.New("unknown incident")
)

// Intent is a requested state change. The set of intents is closed.
type Intent interface {
	// apply mutates a private copy and reports whether anything changed.
	apply(s *Snapshot) (bool, error)
}

// Reduce applies intent to prev and returns the next snapshot. prev is never
// modified. When the intent is a no-op, prev is returned unchanged.
func Reduce(prev Snapshot, intent Intent) (Snapshot, bool, error) {
	if intent == nil {
		return prev, false, fmt.Errorf("%w: nil intent", ErrInvalidIntent)
	}
	next := prev.clone()
	changed, err := intent.apply(&next)
	if err != nil || !changed {
		return prev, false, err
	}
	next.Version = prev.Version + 1
	return next, true, nil
}

// ReplaceIncidents swaps in a freshly fetched incident set. The selection is
// cleared when the selected incident is no longer active.
type ReplaceIncidents struct {
	Incidents []domain.FireIncident
}

func (i ReplaceIncidents) apply(s *Snapshot) (bool, error) {
	s.Incidents = slices.Clone(i.Incidents)
	s.IncidentStatus = IncidentsLoaded
	s.IncidentError = ""
	if _, ok := s.SelectedIncident(); !ok {
		s.SelectedIncidentID = ""
	}
	return true, nil
}

// MarkIncidentsFailed records a failed incident fetch. With Clear set the
// active set is emptied; otherwise it is retained and flagged.
type MarkIncidentsFailed struct {
	Err   error
	Clear bool
}

func (i MarkIncidentsFailed) apply(s *Snapshot) (bool, error) {
	s.IncidentStatus = IncidentsFailed
	s.IncidentError = "unknown error"
	if i.Err != nil {
		s.IncidentError = i.Err.Error()
	}
	if i.Clear {
		s.Incidents = nil
		s.SelectedIncidentID = ""
	}
	return true, nil
}

// ReplaceHotspots swaps in a provider's freshly fetched points.
type ReplaceHotspots struct {
	Provider domain.Provider
	Hotspots []domain.Hotspot
}

func (i ReplaceHotspots) apply(s *Snapshot) (bool, error) {
	if !i.Provider.Valid() {
		return false, fmt.Errorf("%w: unknown provider %q", ErrInvalidIntent, i.Provider)
	}
	layer := s.Hotspots[i.Provider]
	layer.Points = slices.Clone(i.Hotspots)
	s.Hotspots[i.Provider] = layer
	return true, nil
}

// ToggleProviderEnabled flips a provider's visibility.
type ToggleProviderEnabled struct {
	Provider domain.Provider
}

func (i ToggleProviderEnabled) apply(s *Snapshot) (bool, error) {
	if !i.Provider.Valid() {
		return false, fmt.Errorf("%w: unknown provider %q", ErrInvalidIntent, i.Provider)
	}
	layer := s.Hotspots[i.Provider]
	layer.Enabled = !layer.Enabled
	s.Hotspots[i.Provider] = layer
	return true, nil
}

// SetViewMode switches every provider between markers and heatmap.
type SetViewMode struct {
	Mode domain.ViewMode
}

func (i SetViewMode) apply(s *Snapshot) (bool, error) {
	if !i.Mode.Valid() {
		return false, fmt.Errorf("%w: unknown view mode %q", ErrInvalidIntent, i.Mode)
	}
	if s.ViewMode == i.Mode {
		return false, nil
	}
	s.ViewMode = i.Mode
	return true, nil
}

// SelectIncident selects an active incident. An empty ID clears the selection.
type SelectIncident struct {
	ID string
}

func (i SelectIncident) apply(s *Snapshot) (bool, error) {
	if i.ID != "" {
		if _, ok := s.Incident(i.ID); !ok {
			return false, fmt.Errorf("%w: %q", ErrUnknownIncident, i.ID)
		}
	}
	if s.SelectedIncidentID == i.ID {
		return false, nil
	}
	s.SelectedIncidentID = i.ID
	return true, nil
}

// SetOverlayEnabled shows or hides a prediction overlay.
type SetOverlayEnabled struct {
	Kind    domain.OverlayKind
	Enabled bool
}

func (i SetOverlayEnabled) apply(s *Snapshot) (bool, error) {
	if !i.Kind.Valid() {
		return false, fmt.Errorf("%w: unknown overlay %q", ErrInvalidIntent, i.Kind)
	}
	o := s.Overlays[i.Kind]
	if o.Enabled == i.Enabled {
		return false, nil
	}
	o.Enabled = i.Enabled
	s.Overlays[i.Kind] = o
	return true, nil
}

// SetOverlayData replaces a prediction overlay's payload.
type SetOverlayData struct {
	Kind domain.OverlayKind
	Data domain.OverlayData
}

func (i SetOverlayData) apply(s *Snapshot) (bool, error) {
	if !i.Kind.Valid() {
		return false, fmt.Errorf("%w: unknown overlay %q", ErrInvalidIntent, i.Kind)
	}
	o := s.Overlays[i.Kind]
	o.Data = domain.OverlayData{
		Perimeters: slices.Clone(i.Data.Perimeters),
		Points:     slices.Clone(i.Data.Points),
	}
	s.Overlays[i.Kind] = o
	return true, nil
}
