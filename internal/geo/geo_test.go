package geo

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestValidateCoordinate(t *testing.T) {
	tests := []struct {
		name string
		pair any
		want bool
	}{
		{"decoded pair", []any{-120.5, 38.2}, true},
		{"float slice", []float64{1, 2}, true},
		{"orb point", orb.Point{1, 2}, true},
		{"json number", []any{json.Number("1.5"), json.Number("2")}, true},
		{"three components", []any{1.0, 2.0, 3.0}, false},
		{"one component", []any{1.0}, false},
		{"string component", []any{"1", 2.0}, false},
		{"nil component", []any{nil, 2.0}, false},
		{"NaN", []any{math.NaN(), 2.0}, false},
		{"infinity", []float64{math.Inf(1), 2}, false},
		{"not an array", "1,2", false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateCoordinate(tt.pair))
		})
	}
}

func TestCentroid_Square(t *testing.T) {
	square := orb.Polygon{orb.Ring{{0, 0}, {0, 2}, {2, 2}, {2, 0}}}

	c := Centroid(square)
	require.NotNil(t, c)
	assert.InDelta(t, 1.0, c.Lat, 1e-9)
	assert.InDelta(t, 1.0, c.Lng, 1e-9)
}

func TestCentroid_MultiPolygonAveragesAllOuterRings(t *testing.T) {
	mp := orb.MultiPolygon{
		{orb.Ring{{0, 0}, {0, 2}, {2, 2}, {2, 0}}},
		{orb.Ring{{10, 10}, {10, 12}, {12, 12}, {12, 10}}},
		// holes do not contribute
		{orb.Ring{{5, 5}, {5, 7}, {7, 7}, {7, 5}}, orb.Ring{{100, 100}, {100, 101}, {101, 101}}},
	}

	c := Centroid(mp)
	require.NotNil(t, c)
	assert.InDelta(t, 6.0, c.Lng, 1e-9)
	assert.InDelta(t, 6.0, c.Lat, 1e-9)
}

func TestRawCentroid_CountsShortOuterRings(t *testing.T) {
	coords := decode(t, `[[[[0,0],[0,2],[2,2],[2,0]]],[[[10,10],[10,12]]]]`)

	c := RawCentroid("MultiPolygon", coords)
	require.NotNil(t, c)
	assert.InDelta(t, 4.0, c.Lng, 1e-9)
	assert.InDelta(t, 26.0/6, c.Lat, 1e-9)

	// The drawable geometry still prunes the two-point part.
	g, err := ParseGeometry("MultiPolygon", coords)
	require.NoError(t, err)
	assert.Len(t, g.(orb.MultiPolygon), 1)
}

func TestRawCentroid(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		coords string
		want   *domain.LatLng
	}{
		{"square polygon", "Polygon", `[[[0,0],[0,2],[2,2],[2,0]]]`, &domain.LatLng{Lat: 1, Lng: 1}},
		{"holes ignored", "Polygon", `[[[0,0],[0,2],[2,2],[2,0]],[[50,50],[50,60],[60,60]]]`, &domain.LatLng{Lat: 1, Lng: 1}},
		{"single valid point", "Polygon", `[[[3,4],["x","y"]]]`, &domain.LatLng{Lat: 4, Lng: 3}},
		{"no valid points", "Polygon", `[[["x","y"]]]`, nil},
		{"empty polygon", "Polygon", `[]`, nil},
		{"unsupported type", "LineString", `[[0,0],[1,1]]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RawCentroid(tt.typ, decode(t, tt.coords))
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, tt.want.Lat, got.Lat, 1e-9)
			assert.InDelta(t, tt.want.Lng, got.Lng, 1e-9)
		})
	}
}

func TestCentroid_SkipsInvalidPoints(t *testing.T) {
	poly := orb.Polygon{orb.Ring{{0, 0}, {math.NaN(), 5}, {0, 2}, {2, 2}, {2, 0}}}

	c := Centroid(poly)
	require.NotNil(t, c)
	assert.InDelta(t, 1.0, c.Lat, 1e-9)
}

func TestCentroid_NoValidPoints(t *testing.T) {
	assert.Nil(t, Centroid(nil))
	assert.Nil(t, Centroid(orb.Polygon{}))
	assert.Nil(t, Centroid(orb.Polygon{orb.Ring{{math.NaN(), 1}}}))
	assert.Nil(t, Centroid(orb.Point{1, 2}))
}

func TestParseGeometry_Polygon(t *testing.T) {
	coords := decode(t, `[[[-120,38],[-120,39],["x",1],[-119,39],[-120,38]]]`)

	g, err := ParseGeometry("Polygon", coords)
	require.NoError(t, err)

	want := orb.Polygon{orb.Ring{{-120, 38}, {-120, 39}, {-119, 39}, {-120, 38}}}
	if diff := cmp.Diff(want, g); diff != "" {
		t.Errorf("ParseGeometry mismatch (-want +got):\n%s", diff)
	}
}

func TestParseGeometry_DegenerateOuterRing(t *testing.T) {
	coords := decode(t, `[[[0,0],[0,1],[null,null],["a","b"]]]`)

	_, err := ParseGeometry("Polygon", coords)
	require.ErrorIs(t, err, domain.ErrGeometryInvalid)
}

func TestParseGeometry_DropsDegenerateHole(t *testing.T) {
	coords := decode(t, `[[[0,0],[0,4],[4,4],[4,0]],[[1,1],[2,2]]]`)

	g, err := ParseGeometry("Polygon", coords)
	require.NoError(t, err)
	assert.Len(t, g.(orb.Polygon), 1)
}

func TestParseGeometry_MultiPolygonKeepsValidParts(t *testing.T) {
	coords := decode(t, `[[[[0,0],[0,1]]],[[[5,5],[5,6],[6,6],[6,5]]]]`)

	g, err := ParseGeometry("MultiPolygon", coords)
	require.NoError(t, err)

	mp, ok := g.(orb.MultiPolygon)
	require.True(t, ok)
	require.Len(t, mp, 1)
	assert.Equal(t, orb.Point{5, 5}, mp[0][0][0])
}

func TestParseGeometry_Errors(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		coords string
	}{
		{"unsupported type", "LineString", `[[0,0],[1,1]]`},
		{"polygon without rings", "Polygon", `[]`},
		{"polygon not array", "Polygon", `"nope"`},
		{"multipolygon all degenerate", "MultiPolygon", `[[[[0,0]]],[[[1,1],[2,2]]]]`},
		{"multipolygon not array", "MultiPolygon", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGeometry(tt.typ, decode(t, tt.coords))
			assert.ErrorIs(t, err, domain.ErrGeometryInvalid)
		})
	}
}

func TestReorderToLatLng(t *testing.T) {
	ring := orb.Ring{{-120, 38}, {-120, 39}, {-119, 39}}

	got, ok := ReorderToLatLng(ring)
	require.True(t, ok)

	want := []domain.LatLng{{Lat: 38, Lng: -120}, {Lat: 39, Lng: -120}, {Lat: 39, Lng: -119}}
	assert.Equal(t, want, got)
}

func TestReorderToLatLng_DropsDegenerate(t *testing.T) {
	ring := orb.Ring{{-120, 38}, {math.NaN(), 39}, {-119, 39}}

	got, ok := ReorderToLatLng(ring)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestDisplayRingsAndBounds(t *testing.T) {
	mp := orb.MultiPolygon{
		{orb.Ring{{0, 0}, {0, 2}, {2, 2}}},
		{orb.Ring{{10, 10}, {11, 11}}},
	}

	rings := DisplayRings(mp)
	require.Len(t, rings, 1)
	assert.Equal(t, domain.LatLng{Lat: 2, Lng: 0}, rings[0][1])

	b, ok := Bounds(mp)
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}, b)

	_, ok = Bounds(orb.Polygon{orb.Ring{{1, 1}}})
	assert.False(t, ok)
}

func TestIsInRegion(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		region   Region
		want     bool
	}{
		{"inside mainland", 38.5, -120.1, UnitedStates, true},
		{"inside hawaii", 19.6, -155.5, UnitedStates, true},
		{"inside alaska", 64.8, -147.7, UnitedStates, true},
		{"mexico", 19.4, -99.1, UnitedStates, false},
		{"canada", 53.5, -113.5, UnitedStates, false},
		{"min corner inclusive", 51, -173, Alaska, true},
		{"max corner inclusive", 72, -130, Alaska, true},
		{"just outside", 72.0001, -140, Alaska, false},
		{"empty region", 0, 0, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInRegion(tt.lat, tt.lng, tt.region))
			assert.Equal(t, tt.want, tt.region.Contains(tt.lat, tt.lng))
		})
	}
}
