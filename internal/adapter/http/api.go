package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/normalize"
	"github.com/couchcryptid/firesync/internal/pipeline"
	"github.com/couchcryptid/firesync/internal/state"
)

// Controller is the session surface the API drives.
type Controller interface {
	Snapshot() state.Snapshot
	Reports() map[string]normalize.Report
	Refresh() (string, error)
	Dispatch(ctx context.Context, intent state.Intent) (state.Snapshot, error)
	PredictionAvailable(ctx context.Context, name string) (bool, error)
	InvalidatePrediction(name string) error
}

const maxBodyBytes = 1 << 16

type providerView struct {
	Enabled bool             `json:"enabled"`
	Count   int              `json:"count"`
	Points  []domain.Hotspot `json:"points"`
}

type overlayView struct {
	Enabled bool               `json:"enabled"`
	Data    domain.OverlayData `json:"data"`
}

type snapshotView struct {
	Version        uint64                             `json:"version"`
	IncidentStatus state.IncidentStatus               `json:"incident_status"`
	IncidentError  string                             `json:"incident_error,omitempty"`
	Incidents      []domain.FireIncident              `json:"incidents"`
	Hotspots       map[domain.Provider]providerView   `json:"hotspots"`
	ViewMode       domain.ViewMode                    `json:"view_mode"`
	Selected       string                             `json:"selected_incident_id,omitempty"`
	Overlays       map[domain.OverlayKind]overlayView `json:"overlays"`
	Reports        map[string]normalize.Report        `json:"reports,omitempty"`
}

func newSnapshotView(s state.Snapshot, reports map[string]normalize.Report) snapshotView {
	v := snapshotView{
		Version:        s.Version,
		IncidentStatus: s.IncidentStatus,
		IncidentError:  s.IncidentError,
		Incidents:      s.Incidents,
		Hotspots:       make(map[domain.Provider]providerView, len(s.Hotspots)),
		ViewMode:       s.ViewMode,
		Selected:       s.SelectedIncidentID,
		Overlays:       make(map[domain.OverlayKind]overlayView, len(s.Overlays)),
		Reports:        reports,
	}
	if v.Incidents == nil {
		v.Incidents = []domain.FireIncident{}
	}
	for p, layer := range s.Hotspots {
		points := layer.Points
		if points == nil {
			points = []domain.Hotspot{}
		}
		v.Hotspots[p] = providerView{Enabled: layer.Enabled, Count: len(points), Points: points}
	}
	for k, o := range s.Overlays {
		v.Overlays[k] = overlayView{Enabled: o.Enabled, Data: o.Data}
	}
	return v
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newSnapshotView(s.api.Snapshot(), s.api.Reports()))
}

func (s *Server) handleLayers(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.layers.Layers()) //nolint:errcheck // best-effort response
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	cycle, err := s.api.Refresh()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"cycle_id": cycle})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, state.SelectIncident{ID: r.PathValue("id")})
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, state.SelectIncident{})
}

func (s *Server) handleToggleProvider(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, state.ToggleProviderEnabled{Provider: domain.Provider(r.PathValue("provider"))})
}

func (s *Server) handleViewMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode domain.ViewMode `json:"mode"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.dispatch(w, r, state.SetViewMode{Mode: body.Mode})
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
		return
	}
	s.dispatch(w, r, state.SetOverlayEnabled{Kind: domain.OverlayKind(r.PathValue("kind")), Enabled: *body.Enabled})
}

func (s *Server) handlePredictionAvailable(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	name := r.PathValue("name")
	ok, err := s.api.PredictionAvailable(ctx, name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "available": ok})
}

func (s *Server) handleInvalidatePrediction(w http.ResponseWriter, r *http.Request) {
	if err := s.api.InvalidatePrediction(r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, intent state.Intent) {
	snap, err := s.api.Dispatch(r.Context(), intent)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotView(snap, nil))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("api request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, state.ErrUnknownIncident):
		return http.StatusNotFound
	case errors.Is(err, state.ErrInvalidIntent):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrPredictionsDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, pipeline.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
