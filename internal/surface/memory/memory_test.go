package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/mapsync"
	"github.com/couchcryptid/firesync/internal/observability"
	"github.com/couchcryptid/firesync/internal/state"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateAndRemove(t *testing.T) {
	s := New(discardLogger())

	ref, err := s.CreateMarker(mapsync.Marker{
		Kind:     mapsync.LayerHotspotMarkers,
		EntityID: "modis/1",
		Position: domain.LatLng{Lat: 38, Lng: -120},
		Provider: domain.ProviderMODIS,
		Value:    12.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count(mapsync.LayerHotspotMarkers))

	fc := s.Layers()
	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, orb.Point{-120, 38}, f.Geometry)
	assert.Equal(t, "modis", f.Properties["provider"])
	assert.Equal(t, string(ref), f.ID)
	assert.NotContains(t, f.Properties, "confidence")

	require.NoError(t, s.RemoveDrawable(ref))
	assert.Zero(t, s.Count(mapsync.LayerHotspotMarkers))

	err = s.RemoveDrawable(ref)
	require.ErrorIs(t, err, mapsync.ErrDrawableGone)
}

func TestCreatePolygon_ClosesRings(t *testing.T) {
	s := New(discardLogger())

	_, err := s.CreatePolygon(mapsync.Polygon{
		Kind:     mapsync.LayerIncidentPolygons,
		EntityID: "7",
		Rings: [][]domain.LatLng{
			{{Lat: 38, Lng: -121}, {Lat: 39, Lng: -121}, {Lat: 39, Lng: -120}},
		},
	})
	require.NoError(t, err)

	poly, ok := s.Layers().Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly[0], 4)
	assert.Equal(t, poly[0][0], poly[0][3])
	assert.Equal(t, orb.Point{-121, 38}, poly[0][0])

	_, err = s.CreatePolygon(mapsync.Polygon{Kind: mapsync.LayerIncidentPolygons, EntityID: "8"})
	require.Error(t, err)
}

func TestCreatePolygon_MultipleRings(t *testing.T) {
	s := New(discardLogger())
	ring := []domain.LatLng{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 0}, {Lat: 1, Lng: 1}}

	_, err := s.CreatePolygon(mapsync.Polygon{
		Kind:     mapsync.LayerIncidentPolygons,
		EntityID: "9",
		Rings:    [][]domain.LatLng{ring, ring},
	})
	require.NoError(t, err)
	mp, ok := s.Layers().Features[0].Geometry.(orb.MultiPolygon)
	require.True(t, ok)
	assert.Len(t, mp, 2)
}

func TestClick(t *testing.T) {
	s := New(discardLogger())
	_, err := s.CreateMarker(mapsync.Marker{Kind: mapsync.LayerIncidentMarkers, EntityID: "a", Clickable: true})
	require.NoError(t, err)
	_, err = s.CreateMarker(mapsync.Marker{Kind: mapsync.LayerHotspotMarkers, EntityID: "viirs/b"})
	require.NoError(t, err)

	var got []string
	unsubscribe := s.OnEntityClicked(func(id string) { got = append(got, id) })

	require.NoError(t, s.Click("a"))
	require.ErrorIs(t, s.Click("viirs/b"), ErrNotClickable)
	unsubscribe()
	require.NoError(t, s.Click("a"))

	assert.Equal(t, []string{"a"}, got)
}

func TestPlugin(t *testing.T) {
	require.NoError(t, Plugin{}.Load(context.Background()))

	boom := errors.New("boom")
	require.ErrorIs(t, Plugin{Err: boom}.Load(context.Background()), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Plugin{Delay: time.Hour}.Load(ctx), context.Canceled)
}

func TestSynchronizerRoundTrip(t *testing.T) {
	s := New(discardLogger())
	sync := mapsync.New(s, Plugin{Delay: time.Millisecond}, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, sync.Init(context.Background()))
	t.Cleanup(sync.Dispose)

	select {
	case <-sync.PluginSettled():
	case <-time.After(2 * time.Second):
		t.Fatal("plugin did not settle")
	}

	snap := state.Initial()
	intents := []state.Intent{
		state.ReplaceIncidents{Incidents: []domain.FireIncident{{
			ID:       "1",
			Name:     "Creek",
			Centroid: domain.LatLng{Lat: 38.5, Lng: -120.5},
			Severity: domain.SeverityLow,
			Geometry: orb.Polygon{orb.Ring{{-121, 38}, {-121, 39}, {-120, 39}, {-120, 38}, {-121, 38}}},
		}}},
		state.ReplaceHotspots{Provider: domain.ProviderVIIRS, Hotspots: []domain.Hotspot{
			{ID: "v1", Provider: domain.ProviderVIIRS, Latitude: 38.2, Longitude: -120.2, Intensity: 30},
		}},
		state.SetViewMode{Mode: domain.ViewHeatmap},
	}
	for _, in := range intents {
		var err error
		snap, _, err = state.Reduce(snap, in)
		require.NoError(t, err)
	}

	_, err := sync.Reconcile(snap)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Count(mapsync.LayerIncidentMarkers))
	assert.Equal(t, 1, s.Count(mapsync.LayerIncidentPolygons))
	assert.Equal(t, 1, s.Count(mapsync.LayerDensity))
	assert.Zero(t, s.Count(mapsync.LayerHotspotMarkers))

	fc := s.Layers()
	require.Len(t, fc.Features, 3)
	assert.Equal(t, string(mapsync.LayerIncidentPolygons), fc.Features[0].Properties["layer"])
	assert.Equal(t, string(mapsync.LayerIncidentMarkers), fc.Features[2].Properties["layer"])

	var selected string
	sync.OnEntitySelected(func(id string) { selected = id })
	require.NoError(t, s.Click("1"))
	assert.Equal(t, "1", selected)

	s.Resize()
	assert.Equal(t, 1, s.Invalidations())

	sync.Dispose()
	assert.Empty(t, s.Layers().Features)
}
