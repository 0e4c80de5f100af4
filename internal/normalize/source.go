package normalize

import (
	"time"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/geo"
)

// FeatureCollection is the collection type every bundled provider declares.
const FeatureCollection = "FeatureCollection"

// IncidentFields maps provider property keys onto FireIncident fields.
type IncidentFields struct {
	// Name lists candidate keys in priority order; the first non-empty wins.
	Name        []string
	SizeAcres   string
	Containment string
	// LastUpdate holds epoch milliseconds or an RFC 3339 string.
	LastUpdate string
	// ID is optional. The feature's top-level id is used when it is empty or absent.
	ID string
}

// IncidentSource configures normalization of one incident provider.
type IncidentSource struct {
	Feed           string
	CollectionType string
	Fields         IncidentFields
	// Window discards reports older than now-Window before grouping. Zero disables it.
	Window  time.Duration
	Include geo.Region
	Exclude geo.Region
	// FallbackID prefixes the 1-based feature position when no id is present.
	FallbackID string
	// FallbackName prefixes the 1-based feature position when no name is present.
	FallbackName string
}

// HotspotFields maps provider property keys onto Hotspot fields. An empty key
// means the provider does not report that field.
type HotspotFields struct {
	ID         string
	AgeHours   string
	Confidence string
	Intensity  string
}

// HotspotSource configures normalization of one hotspot provider.
type HotspotSource struct {
	Provider       domain.Provider
	CollectionType string
	Fields         HotspotFields
	// ConfidenceFloor drops points below it. Zero disables the floor, and so
	// does an empty Fields.Confidence.
	ConfidenceFloor float64
	Include         geo.Region
}

// Feed returns the feed name used in logs, metrics and errors.
func (s HotspotSource) Feed() string {
	return string(s.Provider)
}

// DefaultMODISConfidenceFloor is the lowest MODIS confidence kept.
const DefaultMODISConfidenceFloor = 80

// WFIGSIncidents describes the WFIGS interagency current perimeters layer.
func WFIGSIncidents(window time.Duration) IncidentSource {
	return IncidentSource{
		Feed:           "incidents",
		CollectionType: FeatureCollection,
		Fields: IncidentFields{
			Name:        []string{"poly_IncidentName", "incident_name"},
			SizeAcres:   "poly_Acres_AutoCalc",
			Containment: "poly_PercentContained",
			LastUpdate:  "poly_DateCurrent",
			ID:          "OBJECTID",
		},
		Window:       window,
		Exclude:      geo.Alaska,
		FallbackID:   "fire_",
		FallbackName: "Fire_",
	}
}

// VIIRSHotspots describes the VIIRS thermal hotspot layer.
func VIIRSHotspots() HotspotSource {
	return HotspotSource{
		Provider:       domain.ProviderVIIRS,
		CollectionType: FeatureCollection,
		Fields: HotspotFields{
			AgeHours:  "hours_old",
			Intensity: "frp",
		},
		Include: geo.UnitedStates,
	}
}

// MODISHotspots describes the MODIS thermal layer with the given confidence floor.
func MODISHotspots(floor float64) HotspotSource {
	return HotspotSource{
		Provider:       domain.ProviderMODIS,
		CollectionType: FeatureCollection,
		Fields: HotspotFields{
			AgeHours:   "HOURS_OLD",
			Confidence: "CONFIDENCE",
			Intensity:  "FRP",
		},
		ConfidenceFloor: floor,
		Include:         geo.UnitedStates,
	}
}

// HotspotSourceFor returns the bundled source for a provider.
func HotspotSourceFor(p domain.Provider, modisFloor float64) (HotspotSource, bool) {
	switch p {
	case domain.ProviderVIIRS:
		return VIIRSHotspots(), true
	case domain.ProviderMODIS:
		return MODISHotspots(modisFloor), true
	default:
		return HotspotSource{}, false
	}
}
