package geo

import (
	"fmt"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"
)

// MinRingPoints is the smallest number of valid points a drawable ring needs.
const MinRingPoints = 3

// ParseRing keeps the valid points of a decoded ring, in provider order.
// Invalid pairs are dropped silently.
func ParseRing(v any) orb.Ring {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	ring := make(orb.Ring, 0, len(raw))
	for _, pair := range raw {
		if p, ok := ParsePoint(pair); ok {
			ring = append(ring, p)
		}
	}
	return ring
}

// ParseGeometry builds an orb.Polygon or orb.MultiPolygon from decoded GeoJSON
// coordinates. Rings with fewer than MinRingPoints valid points are dropped; a
// polygon whose outer ring is dropped is dropped with it. The error wraps
// domain.ErrGeometryInvalid when nothing drawable remains.
func ParseGeometry(typ string, coords any) (orb.Geometry, error) {
	switch typ {
	case "Polygon":
		poly, err := parsePolygon(coords)
		if err != nil {
			return nil, err
		}
		return poly, nil
	case "MultiPolygon":
		raw, ok := coords.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: multipolygon coordinates are not an array", domain.ErrGeometryInvalid)
		}
		mp := make(orb.MultiPolygon, 0, len(raw))
		for _, c := range raw {
			poly, err := parsePolygon(c)
			if err != nil {
				continue
			}
			mp = append(mp, poly)
		}
		if len(mp) == 0 {
			return nil, fmt.Errorf("%w: no polygon with %d valid points", domain.ErrGeometryInvalid, MinRingPoints)
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("%w: unsupported geometry type %q", domain.ErrGeometryInvalid, typ)
	}
}

func parsePolygon(coords any) (orb.Polygon, error) {
	raw, ok := coords.([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%w: polygon has no rings", domain.ErrGeometryInvalid)
	}
	poly := make(orb.Polygon, 0, len(raw))
	for i, r := range raw {
		ring := ParseRing(r)
		if len(ring) < MinRingPoints {
			if i == 0 {
				return nil, fmt.Errorf("%w: outer ring has %d valid points", domain.ErrGeometryInvalid, len(ring))
			}
			continue
		}
		poly = append(poly, ring)
	}
	return poly, nil
}

// OuterRings returns the outer ring of a Polygon, or of every polygon in a
// MultiPolygon. Other geometry types yield nil.
func OuterRings(g orb.Geometry) []orb.Ring {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return nil
		}
		return []orb.Ring{v[0]}
	case orb.MultiPolygon:
		rings := make([]orb.Ring, 0, len(v))
		for _, poly := range v {
			if len(poly) > 0 {
				rings = append(rings, poly[0])
			}
		}
		return rings
	default:
		return nil
	}
}

// Centroid averages every valid vertex of the outer ring(s). This is a vertex
// mean, not an area-weighted centroid. It returns nil when no valid point
// remains.
func Centroid(g orb.Geometry) *domain.LatLng {
	return vertexMean(OuterRings(g))
}

// RawCentroid is Centroid over decoded GeoJSON coordinates. Outer rings too
// short to draw still contribute their valid points.
func RawCentroid(typ string, coords any) *domain.LatLng {
	var rings []orb.Ring
	switch typ {
	case "Polygon":
		if outer, ok := firstRing(coords); ok {
			rings = append(rings, ParseRing(outer))
		}
	case "MultiPolygon":
		parts, _ := coords.([]any)
		for _, part := range parts {
			if outer, ok := firstRing(part); ok {
				rings = append(rings, ParseRing(outer))
			}
		}
	}
	return vertexMean(rings)
}

func firstRing(coords any) (any, bool) {
	raw, ok := coords.([]any)
	if !ok || len(raw) == 0 {
		return nil, false
	}
	return raw[0], true
}

func vertexMean(rings []orb.Ring) *domain.LatLng {
	var lngs, lats []float64
	for _, ring := range rings {
		for _, p := range ring {
			if !validPoint(p) {
				continue
			}
			lngs = append(lngs, p[0])
			lats = append(lats, p[1])
		}
	}
	if len(lats) == 0 {
		return nil
	}
	return &domain.LatLng{Lat: stat.Mean(lats, nil), Lng: stat.Mean(lngs, nil)}
}

// ReorderToLatLng swaps provider [lng, lat] points into display order. ok is
// false when fewer than MinRingPoints valid points remain; such a ring must
// not be drawn.
func ReorderToLatLng(ring orb.Ring) ([]domain.LatLng, bool) {
	out := make([]domain.LatLng, 0, len(ring))
	for _, p := range ring {
		if !validPoint(p) {
			continue
		}
		out = append(out, domain.LatLng{Lat: p[1], Lng: p[0]})
	}
	if len(out) < MinRingPoints {
		return nil, false
	}
	return out, true
}

// DisplayRings reorders every drawable outer ring of g. Degenerate rings are
// left out.
func DisplayRings(g orb.Geometry) [][]domain.LatLng {
	var rings [][]domain.LatLng
	for _, ring := range OuterRings(g) {
		if r, ok := ReorderToLatLng(ring); ok {
			rings = append(rings, r)
		}
	}
	return rings
}

// Bounds returns the bounding box of the drawable outer rings of g.
func Bounds(g orb.Geometry) (orb.Bound, bool) {
	var (
		b     orb.Bound
		found bool
	)
	for _, ring := range OuterRings(g) {
		if _, ok := ReorderToLatLng(ring); !ok {
			continue
		}
		for _, p := range ring {
			if !validPoint(p) {
				continue
			}
			if !found {
				b = orb.Bound{Min: p, Max: p}
				found = true
				continue
			}
			b = b.Extend(p)
		}
	}
	return b, found
}
