package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/firesync/internal/domain"
)

// Provider payloads are decoded loosely. The collection envelope must be
// well formed, but each feature is decoded on its own so one bad feature
// cannot sink the rest.

type envelope struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

type rawFeature struct {
	ID         any            `json:"id"`
	Geometry   *rawGeometry   `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type rawGeometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

var errMissingGeometry = errors.New("feature has no geometry")

func decodeCollection(feed, want string, payload []byte) ([]json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, domain.NewFeedMalformed(feed, fmt.Errorf("decode collection: %w", err))
	}
	if env.Type != want {
		return nil, domain.NewFeedMalformed(feed, fmt.Errorf("collection type %q, want %q", env.Type, want))
	}
	if env.Features == nil {
		return nil, domain.NewFeedMalformed(feed, errors.New("collection has no features member"))
	}
	return env.Features, nil
}

func decodeFeature(raw json.RawMessage) (rawFeature, error) {
	var f rawFeature
	if err := json.Unmarshal(raw, &f); err != nil {
		return rawFeature{}, fmt.Errorf("decode feature: %w", err)
	}
	if f.Geometry == nil {
		return rawFeature{}, errMissingGeometry
	}
	return f, nil
}

// stringProp returns a trimmed, non-empty string property.
func stringProp(props map[string]any, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	s, ok := props[key].(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func firstStringProp(props map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		if s, ok := stringProp(props, k); ok {
			return s, true
		}
	}
	return "", false
}

// numberProp returns a finite numeric property. Numeric strings are accepted
// because some layers serialize attributes as text.
func numberProp(props map[string]any, key string) (float64, bool) {
	if key == "" {
		return 0, false
	}
	var f float64
	switch v := props[key].(type) {
	case float64:
		f = v
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// epochMillisProp reads an update stamp as epoch milliseconds.
func epochMillisProp(props map[string]any, key string) (int64, bool) {
	if f, ok := numberProp(props, key); ok {
		return int64(math.Round(f)), true
	}
	if s, ok := stringProp(props, key); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// idString renders a provider id. Numeric ids are printed without exponent.
func idString(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) {
			return "", false
		}
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case json.Number:
		return id.String(), true
	default:
		return "", false
	}
}

func featureID(props map[string]any, key string, topLevel any) (string, bool) {
	if key != "" {
		if id, ok := idString(props[key]); ok {
			return id, true
		}
	}
	return idString(topLevel)
}
