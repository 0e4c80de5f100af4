package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/normalize"
	"github.com/couchcryptid/firesync/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMock(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "data", "mock", name))
	require.NoError(t, err)
	return data
}

func newTransformer() *pipeline.FeedTransformer {
	return pipeline.NewTransformer(
		normalize.WFIGSIncidents(0),
		[]normalize.HotspotSource{normalize.VIIRSHotspots(), normalize.MODISHotspots(normalize.DefaultMODISConfidenceFloor)},
		discardLogger(),
	)
}

func TestFeedTransformer_IncidentsFromMockData(t *testing.T) {
	incidents, report, err := newTransformer().Incidents(readMock(t, "wfigs_incidents.geojson"))
	require.NoError(t, err)

	byName := make(map[string]domain.FireIncident)
	for _, inc := range incidents {
		byName[inc.Name] = inc
	}
	require.Len(t, byName, 3)

	park := byName["Park"]
	assert.Equal(t, "101", park.ID)
	assert.Equal(t, 12000, park.SizeAcres)
	assert.Equal(t, domain.SeverityHigh, park.Severity)
	require.NotNil(t, park.ContainmentPercent)
	assert.Equal(t, 40, *park.ContainmentPercent)
	require.NotNil(t, park.LastUpdate)
	assert.Equal(t, int64(1723600000000), park.LastUpdate.UnixMilli())

	creek := byName["Creek"]
	assert.Equal(t, domain.SeverityLow, creek.Severity)
	assert.Nil(t, creek.ContainmentPercent)

	unnamed := byName["Fire_6"]
	assert.Equal(t, "fire_6", unnamed.ID)
	assert.Equal(t, domain.SeverityMedium, unnamed.Severity)

	want := normalize.Report{
		Feed:     pipeline.IncidentsFeed,
		Received: 6,
		Emitted:  3,
		Dropped: map[normalize.DropReason]int{
			normalize.DropSuperseded:      1,
			normalize.DropExcludedRegion:  1,
			normalize.DropInvalidGeometry: 1,
		},
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestFeedTransformer_HotspotsFromMockData(t *testing.T) {
	tfm := newTransformer()

	viirs, report, err := tfm.Hotspots(domain.ProviderVIIRS, readMock(t, "viirs_hotspots.geojson"))
	require.NoError(t, err)
	assert.Len(t, viirs, 2)
	assert.Equal(t, 1, report.Dropped[normalize.DropOutsideRegion])
	for _, h := range viirs {
		assert.Nil(t, h.Confidence)
		assert.Equal(t, domain.ProviderVIIRS, h.Provider)
	}

	modis, report, err := tfm.Hotspots(domain.ProviderMODIS, readMock(t, "modis_hotspots.geojson"))
	require.NoError(t, err)
	require.Len(t, modis, 2)
	assert.Equal(t, 2, report.Dropped[normalize.DropBelowConfidenceFloor])
	for _, h := range modis {
		require.NotNil(t, h.Confidence)
		assert.GreaterOrEqual(t, *h.Confidence, 80.0)
	}
}

func TestFeedTransformer_UnknownProvider(t *testing.T) {
	_, _, err := newTransformer().Hotspots(domain.Provider("goes"), readMock(t, "viirs_hotspots.geojson"))
	require.Error(t, err)
}

func TestFeedTransformer_MalformedPayload(t *testing.T) {
	_, _, err := newTransformer().Incidents([]byte(`{"type":"Feature"}`))
	require.ErrorIs(t, err, domain.ErrFeedMalformed)
}
