package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewLogger_HonorsLevel(t *testing.T) {
	logger := NewLogger("warn", "text")
	assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, logger.Enabled(t.Context(), slog.LevelWarn))
}

func TestNewLoggerTo_WritesToGivenWriter(t *testing.T) {
	tests := []struct {
		format string
		check  func(t *testing.T, out []byte)
	}{
		{"text", func(t *testing.T, out []byte) {
			assert.Contains(t, string(out), `msg="feature skipped"`)
			assert.Contains(t, string(out), "feed=incidents")
		}},
		{"json", func(t *testing.T, out []byte) {
			var line map[string]any
			require.NoError(t, json.Unmarshal(out, &line))
			assert.Equal(t, "feature skipped", line["msg"])
			assert.Equal(t, "incidents", line["feed"])
		}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerTo(&buf, "info", tt.format)
			logger.Debug("hidden")
			logger.Warn("feature skipped", "feed", "incidents")
			tt.check(t, buf.Bytes())
		})
	}
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.FeedFetches.WithLabelValues("incidents", "success").Inc()

	assert.InDelta(t, 1.0, testutil.ToFloat64(a.FeedFetches.WithLabelValues("incidents", "success")), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(b.FeedFetches.WithLabelValues("incidents", "success")), 1e-9)
}
