package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/robfig/cron/v3"
)

// Default feed endpoints.
const (
	DefaultIncidentFeedURL = "https://services3.arcgis.com/T4QMspbfLg3qTGWY/arcgis/rest/services/WFIGS_Interagency_Perimeters_Current/FeatureServer/0/query?where=1%3D1&outFields=*&outSR=4326&f=geojson"
	DefaultVIIRSFeedURL    = "https://services9.arcgis.com/RHVPKKiFTONKtxq3/arcgis/rest/services/Satellite_VIIRS_Thermal_Hotspots_and_Fire_Activity/FeatureServer/0/query?where=1%3D1&outFields=*&outSR=4326&f=geojson"
	DefaultMODISFeedURL    = "https://services9.arcgis.com/RHVPKKiFTONKtxq3/arcgis/rest/services/MODIS_Thermal_v1/FeatureServer/0/query?where=1%3D1&outFields=*&outSR=4326&f=geojson"
)

// Incident failure policies.
const (
	PolicyRetain = "retain"
	PolicyClear  = "clear"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Feeds. An empty hotspot URL disables that provider.
	IncidentFeedURL string
	VIIRSFeedURL    string
	MODISFeedURL    string
	FeedTimeout     time.Duration
	FeedRetries     int
	RefreshSchedule string

	IncidentWindow        time.Duration
	MODISConfidenceFloor  float64
	IncidentFailurePolicy string

	// PredictionBaseURL enables prediction overlays when set.
	PredictionBaseURL string

	// KafkaBrokers enables the event sink when non-empty.
	KafkaBrokers     []string
	KafkaEventsTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	feedTimeout, err := parsePositiveDuration("FEED_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}

	window, err := parseDuration("INCIDENT_WINDOW", "24h")
	if err != nil {
		return nil, err
	}

	retries, err := strconv.Atoi(sharedcfg.EnvOrDefault("FEED_RETRIES", "2"))
	if err != nil || retries < 0 {
		return nil, errors.New("invalid FEED_RETRIES: must be a non-negative integer")
	}

	floor, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MODIS_CONFIDENCE_FLOOR", "80"), 64)
	if err != nil || floor < 0 || floor > 100 {
		return nil, errors.New("invalid MODIS_CONFIDENCE_FLOOR: must be between 0 and 100")
	}

	schedule := sharedcfg.EnvOrDefault("REFRESH_SCHEDULE", "*/10 * * * *")
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid REFRESH_SCHEDULE: %w", err)
	}

	policy := sharedcfg.EnvOrDefault("INCIDENT_FAILURE_POLICY", PolicyRetain)
	if policy != PolicyRetain && policy != PolicyClear {
		return nil, fmt.Errorf("invalid INCIDENT_FAILURE_POLICY %q: must be %s or %s", policy, PolicyRetain, PolicyClear)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		IncidentFeedURL: sharedcfg.EnvOrDefault("INCIDENT_FEED_URL", DefaultIncidentFeedURL),
		VIIRSFeedURL:    envOrDefaultAllowEmpty("VIIRS_FEED_URL", DefaultVIIRSFeedURL),
		MODISFeedURL:    envOrDefaultAllowEmpty("MODIS_FEED_URL", DefaultMODISFeedURL),
		FeedTimeout:     feedTimeout,
		FeedRetries:     retries,
		RefreshSchedule: schedule,

		IncidentWindow:        window,
		MODISConfidenceFloor:  floor,
		IncidentFailurePolicy: policy,

		PredictionBaseURL: os.Getenv("PREDICTION_BASE_URL"),

		KafkaBrokers:     parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaEventsTopic: sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "fire-map-events"),
	}

	for name, raw := range map[string]string{
		"INCIDENT_FEED_URL":   cfg.IncidentFeedURL,
		"VIIRS_FEED_URL":      cfg.VIIRSFeedURL,
		"MODIS_FEED_URL":      cfg.MODISFeedURL,
		"PREDICTION_BASE_URL": cfg.PredictionBaseURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid %s: must be an absolute URL", name)
		}
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaEventsTopic == "" {
		return nil, errors.New("KAFKA_EVENTS_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// ClearOnFailure reports whether a failed incident fetch empties the active set.
func (c *Config) ClearOnFailure() bool {
	return c.IncidentFailurePolicy == PolicyClear
}

// SinkEnabled reports whether events are published to Kafka.
func (c *Config) SinkEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// PredictionsEnabled reports whether prediction overlays are fetched.
func (c *Config) PredictionsEnabled() bool {
	return c.PredictionBaseURL != ""
}

func parseDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative duration", name)
	}
	return d, nil
}

func parsePositiveDuration(name, def string) (time.Duration, error) {
	d, err := parseDuration(name, def)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", name)
	}
	return d, nil
}

func parseBrokers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(raw)
}

// envOrDefaultAllowEmpty returns def only when key is unset, so an explicit
// empty value disables the feed.
func envOrDefaultAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
