package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, DefaultIncidentFeedURL, cfg.IncidentFeedURL)
	assert.Equal(t, DefaultVIIRSFeedURL, cfg.VIIRSFeedURL)
	assert.Equal(t, DefaultMODISFeedURL, cfg.MODISFeedURL)
	assert.Equal(t, 15*time.Second, cfg.FeedTimeout)
	assert.Equal(t, 2, cfg.FeedRetries)
	assert.Equal(t, "*/10 * * * *", cfg.RefreshSchedule)
	assert.Equal(t, 24*time.Hour, cfg.IncidentWindow)
	assert.InDelta(t, 80.0, cfg.MODISConfidenceFloor, 1e-9)
	assert.Equal(t, PolicyRetain, cfg.IncidentFailurePolicy)
	assert.False(t, cfg.ClearOnFailure())
	assert.Empty(t, cfg.PredictionBaseURL)
	assert.False(t, cfg.PredictionsEnabled())
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.SinkEnabled())
	assert.Equal(t, "fire-map-events", cfg.KafkaEventsTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("INCIDENT_FEED_URL", "http://feeds.local/incidents")
	t.Setenv("VIIRS_FEED_URL", "http://feeds.local/viirs")
	t.Setenv("MODIS_FEED_URL", "")
	t.Setenv("FEED_TIMEOUT", "3s")
	t.Setenv("FEED_RETRIES", "0")
	t.Setenv("REFRESH_SCHEDULE", "@every 5m")
	t.Setenv("INCIDENT_WINDOW", "0s")
	t.Setenv("MODIS_CONFIDENCE_FLOOR", "65.5")
	t.Setenv("INCIDENT_FAILURE_POLICY", "clear")
	t.Setenv("PREDICTION_BASE_URL", "http://predict.local")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_EVENTS_TOPIC", "custom-events")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://feeds.local/incidents", cfg.IncidentFeedURL)
	assert.Equal(t, "http://feeds.local/viirs", cfg.VIIRSFeedURL)
	assert.Empty(t, cfg.MODISFeedURL, "explicit empty disables the feed")
	assert.Equal(t, 3*time.Second, cfg.FeedTimeout)
	assert.Equal(t, 0, cfg.FeedRetries)
	assert.Equal(t, "@every 5m", cfg.RefreshSchedule)
	assert.Equal(t, time.Duration(0), cfg.IncidentWindow)
	assert.InDelta(t, 65.5, cfg.MODISConfidenceFloor, 1e-9)
	assert.True(t, cfg.ClearOnFailure())
	assert.True(t, cfg.PredictionsEnabled())
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.SinkEnabled())
	assert.Equal(t, "custom-events", cfg.KafkaEventsTopic)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"shutdown timeout", "SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"negative shutdown timeout", "SHUTDOWN_TIMEOUT", "-1s"},
		{"feed timeout", "FEED_TIMEOUT", "soon"},
		{"zero feed timeout", "FEED_TIMEOUT", "0s"},
		{"negative retries", "FEED_RETRIES", "-1"},
		{"non-numeric retries", "FEED_RETRIES", "many"},
		{"schedule", "REFRESH_SCHEDULE", "every tuesday"},
		{"window", "INCIDENT_WINDOW", "-2h"},
		{"confidence above range", "MODIS_CONFIDENCE_FLOOR", "101"},
		{"confidence below range", "MODIS_CONFIDENCE_FLOOR", "-5"},
		{"policy", "INCIDENT_FAILURE_POLICY", "ignore"},
		{"incident url", "INCIDENT_FEED_URL", "not a url"},
		{"prediction url", "PREDICTION_BASE_URL", "/relative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
