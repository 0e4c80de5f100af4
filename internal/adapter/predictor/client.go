// Package predictor talks to the perimeter prediction backend.
package predictor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Client implements prediction.ExistenceChecker and fetches overlay data.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a prediction client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

func (c *Client) predictionURL(name string) string {
	return c.baseURL + "/api/perimeter-predictions/" + url.PathEscape(strings.TrimSpace(name))
}

// Exists reports whether the backend holds a prediction for the incident.
// 404 means no; any other non-200 status is an error.
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.predictionURL(name), nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("prediction existence request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("prediction API error: status %d", resp.StatusCode)
	}
}

// Prediction fetches the prediction GeoJSON for the incident and splits it
// into predicted perimeters and probability points. Features of any other
// shape are ignored.
func (c *Client) Prediction(ctx context.Context, name string) (domain.OverlayData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.predictionURL(name), nil)
	if err != nil {
		return domain.OverlayData{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.OverlayData{}, fmt.Errorf("prediction request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.OverlayData{}, fmt.Errorf("prediction API error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.OverlayData{}, fmt.Errorf("read response: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return domain.OverlayData{}, fmt.Errorf("decode prediction: %w", err)
	}

	data := overlayFromFeatures(name, fc)
	c.logger.Debug("prediction fetched",
		"incident", name,
		"perimeters", len(data.Perimeters),
		"points", len(data.Points),
		"ignored", len(fc.Features)-len(data.Perimeters)-len(data.Points),
	)
	return data, nil
}

func overlayFromFeatures(name string, fc *geojson.FeatureCollection) domain.OverlayData {
	var data domain.OverlayData
	for i, f := range fc.Features {
		id := featureID(f, i)
		switch g := f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			if len(geo.DisplayRings(g)) == 0 {
				continue
			}
			data.Perimeters = append(data.Perimeters, domain.PredictedPerimeter{
				ID:       id,
				Incident: name,
				Geometry: g,
			})
		case orb.Point:
			p, ok := f.Properties["probability"].(float64)
			if !ok || !geo.ValidateCoordinate(g) {
				continue
			}
			data.Points = append(data.Points, domain.ProbabilityPoint{
				ID:          id,
				Lat:         g.Lat(),
				Lng:         g.Lon(),
				Probability: p,
			})
		}
	}
	return data
}

func featureID(f *geojson.Feature, i int) string {
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%g", v)
	}
	if s, ok := f.Properties["id"].(string); ok && s != "" {
		return s
	}
	return fmt.Sprintf("prediction_%d", i+1)
}
