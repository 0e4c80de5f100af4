// Package geo holds the pure geometry helpers used by normalization and map
// synchronization: coordinate validation, vertex-mean centroids, ring
// reordering for display, and bounding-box region tests.
package geo

import (
	"encoding/json"
	"math"

	"github.com/paulmach/orb"
)

// ParsePoint converts a decoded [x, y] pair into a point. ok is false unless
// the pair has exactly two numeric components and both are finite.
func ParsePoint(pair any) (orb.Point, bool) {
	var x, y any
	switch v := pair.(type) {
	case orb.Point:
		return v, validPoint(v)
	case [2]float64:
		p := orb.Point(v)
		return p, validPoint(p)
	case []float64:
		if len(v) != 2 {
			return orb.Point{}, false
		}
		p := orb.Point{v[0], v[1]}
		return p, validPoint(p)
	case []any:
		if len(v) != 2 {
			return orb.Point{}, false
		}
		x, y = v[0], v[1]
	default:
		return orb.Point{}, false
	}

	fx, ok := toFloat(x)
	if !ok {
		return orb.Point{}, false
	}
	fy, ok := toFloat(y)
	if !ok {
		return orb.Point{}, false
	}
	p := orb.Point{fx, fy}
	return p, validPoint(p)
}

// ValidateCoordinate reports whether pair is a 2-element numeric array with
// both components finite.
func ValidateCoordinate(pair any) bool {
	_, ok := ParsePoint(pair)
	return ok
}

func validPoint(p orb.Point) bool {
	return finite(p[0]) && finite(p[1])
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
