package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "firesync"

// Metrics holds the Prometheus collectors for feeds, reconciliation and the
// prediction cache.
type Metrics struct {
	// Feed metrics.
	FeedFetches        *prometheus.CounterVec   // labels: feed, outcome={success,unreachable,malformed,stale}
	FeedFetchDuration  *prometheus.HistogramVec // labels: feed
	EntitiesNormalized *prometheus.CounterVec   // labels: feed
	FeaturesDropped    *prometheus.CounterVec   // labels: feed, reason
	StaleCompletions   *prometheus.CounterVec   // labels: feed

	// Map synchronization metrics.
	ReconcileOperations *prometheus.CounterVec // labels: op={create,destroy}, kind
	LiveDrawables       *prometheus.GaugeVec   // labels: kind

	// Prediction cache lookups.
	PredictionCache *prometheus.CounterVec // labels: result={hit,miss,error}

	SessionRunning prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FeedFetches,
		m.FeedFetchDuration,
		m.EntitiesNormalized,
		m.FeaturesDropped,
		m.StaleCompletions,
		m.ReconcileOperations,
		m.LiveDrawables,
		m.PredictionCache,
		m.SessionRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Feed fetch cycles by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FeedFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of a feed fetch including retries.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"feed"}),
		EntitiesNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_normalized_total",
			Help:      "Canonical entities produced by normalization.",
		}, []string{"feed"}),
		FeaturesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_dropped_total",
			Help:      "Raw features dropped during normalization by reason.",
		}, []string{"feed", "reason"}),
		StaleCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_completions_total",
			Help:      "Fetch completions discarded because a later request already applied.",
		}, []string{"feed"}),
		ReconcileOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_operations_total",
			Help:      "Drawable create and destroy operations by layer kind.",
		}, []string{"op", "kind"}),
		LiveDrawables: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_drawables",
			Help:      "Drawables currently on the rendering surface by layer kind.",
		}, []string{"kind"}),
		PredictionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_total",
			Help:      "Prediction availability lookups by result.",
		}, []string{"result"}),
		SessionRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_running",
			Help:      "1 while the sync session is running, 0 after shutdown.",
		}),
	}
}
