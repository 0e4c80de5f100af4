package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LayerSource renders the current drawables as GeoJSON.
type LayerSource interface {
	Layers() *geojson.FeatureCollection
}

// Server exposes health, readiness, metrics and the map session API.
type Server struct {
	httpServer *http.Server
	api        Controller
	layers     LayerSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api routes. layers may be nil, in which case /api/layers is not served.
func NewServer(addr string, ready sharedobs.ReadinessChecker, api Controller, layers LayerSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		api:    api,
		layers: layers,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/incidents/{id}/select", s.handleSelect)
	mux.HandleFunc("DELETE /api/selection", s.handleClearSelection)
	mux.HandleFunc("POST /api/providers/{provider}/toggle", s.handleToggleProvider)
	mux.HandleFunc("PUT /api/view-mode", s.handleViewMode)
	mux.HandleFunc("PUT /api/overlays/{kind}", s.handleOverlay)
	mux.HandleFunc("GET /api/predictions/{name}", s.handlePredictionAvailable)
	mux.HandleFunc("POST /api/predictions/{name}/invalidate", s.handleInvalidatePrediction)
	if layers != nil {
		mux.HandleFunc("GET /api/layers", s.handleLayers)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
