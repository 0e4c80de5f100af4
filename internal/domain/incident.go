package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// LatLng is a WGS-84 coordinate in display order.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Severity is the size class of an incident.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Acre thresholds for severity classification.
const (
	HighSeverityAcres   = 10000
	MediumSeverityAcres = 1000
)

// DeriveSeverity classifies an incident by burned area alone.
func DeriveSeverity(sizeAcres int) Severity {
	switch {
	case sizeAcres >= HighSeverityAcres:
		return SeverityHigh
	case sizeAcres >= MediumSeverityAcres:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// FireIncident is one active wildfire after normalization.
//
// Geometry is an orb.Polygon or orb.MultiPolygon with points in provider
// (lng, lat) order, or nil. Every ring it holds has at least three valid points.
type FireIncident struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Centroid           LatLng       `json:"centroid"`
	SizeAcres          int          `json:"size_acres"`
	ContainmentPercent *int         `json:"containment_percent"`
	Severity           Severity     `json:"severity"`
	LastUpdate         *time.Time   `json:"last_update"`
	Geometry           orb.Geometry `json:"-"`
}
