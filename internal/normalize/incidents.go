package normalize

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/geo"
)

// Normalizer turns raw provider payloads into canonical entities.
// It is safe for concurrent use.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer.
func New(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

type incidentCandidate struct {
	index     int
	name      string
	updated   int64
	hasUpdate bool
	feature   rawFeature
}

// Incidents normalizes an incident payload. Reports are grouped by name and
// only the most recent one survives. A malformed feature is skipped and
// logged. A collection-level problem returns an error wrapping
// domain.ErrFeedMalformed and no incidents.
//
// Output follows first-seen name order. Callers must not rely on it.
func (n *Normalizer) Incidents(src IncidentSource, payload []byte) ([]domain.FireIncident, Report, error) {
	raws, err := decodeCollection(src.Feed, src.CollectionType, payload)
	if err != nil {
		return nil, Report{Feed: src.Feed}, err
	}
	report := newReport(src.Feed, len(raws))

	var cutoff int64
	if src.Window > 0 {
		cutoff = domain.Now().Add(-src.Window).UnixMilli()
	}

	order := make([]string, 0, len(raws))
	latest := make(map[string]incidentCandidate, len(raws))
	for i, raw := range raws {
		f, err := decodeFeature(raw)
		if err != nil {
			n.skip(&report, DropMalformedFeature, i, err)
			continue
		}

		name, ok := firstStringProp(f.Properties, src.Fields.Name)
		if !ok {
			name = fmt.Sprintf("%s%d", src.FallbackName, i+1)
		}
		updated, hasUpdate := epochMillisProp(f.Properties, src.Fields.LastUpdate)
		if src.Window > 0 && updated < cutoff {
			report.drop(DropStale)
			continue
		}

		c := incidentCandidate{index: i, name: name, updated: updated, hasUpdate: hasUpdate, feature: f}
		prev, seen := latest[name]
		if !seen {
			order = append(order, name)
			latest[name] = c
			continue
		}
		report.drop(DropSuperseded)
		if c.updated > prev.updated {
			latest[name] = c
		}
	}

	incidents := make([]domain.FireIncident, 0, len(order))
	for _, name := range order {
		c := latest[name]
		inc, reason, err := buildIncident(src, c)
		if err != nil {
			n.skip(&report, reason, c.index, err)
			continue
		}
		if src.Exclude.Contains(inc.Centroid.Lat, inc.Centroid.Lng) {
			report.drop(DropExcludedRegion)
			continue
		}
		if len(src.Include) > 0 && !src.Include.Contains(inc.Centroid.Lat, inc.Centroid.Lng) {
			report.drop(DropOutsideRegion)
			continue
		}
		incidents = append(incidents, inc)
	}

	report.Emitted = len(incidents)
	n.logger.Debug("incidents normalized",
		"feed", src.Feed,
		"received", report.Received,
		"emitted", report.Emitted,
		"dropped", report.TotalDropped(),
	)
	return incidents, report, nil
}

func buildIncident(src IncidentSource, c incidentCandidate) (domain.FireIncident, DropReason, error) {
	props := c.feature.Properties
	geometry, err := geo.ParseGeometry(c.feature.Geometry.Type, c.feature.Geometry.Coordinates)
	if err != nil {
		return domain.FireIncident{}, DropInvalidGeometry, err
	}
	centroid := geo.RawCentroid(c.feature.Geometry.Type, c.feature.Geometry.Coordinates)
	if centroid == nil {
		return domain.FireIncident{}, DropInvalidGeometry, fmt.Errorf("%w: no centroid", domain.ErrGeometryInvalid)
	}

	var acres int
	if v, ok := numberProp(props, src.Fields.SizeAcres); ok && v > 0 {
		acres = int(math.Round(v))
	}

	var containment *int
	if v, ok := numberProp(props, src.Fields.Containment); ok {
		pct := int(math.Round(math.Max(0, math.Min(100, v))))
		containment = &pct
	}

	var lastUpdate *time.Time
	if c.hasUpdate {
		t := time.UnixMilli(c.updated).UTC()
		lastUpdate = &t
	}

	id, ok := featureID(props, src.Fields.ID, c.feature.ID)
	if !ok {
		id = fmt.Sprintf("%s%d", src.FallbackID, c.index+1)
	}

	return domain.FireIncident{
		ID:                 id,
		Name:               c.name,
		Centroid:           *centroid,
		SizeAcres:          acres,
		ContainmentPercent: containment,
		Severity:           domain.DeriveSeverity(acres),
		LastUpdate:         lastUpdate,
		Geometry:           geometry,
	}, "", nil
}

func (n *Normalizer) skip(report *Report, reason DropReason, index int, err error) {
	report.drop(reason)
	n.logger.Warn("skipping feature",
		"feed", report.Feed,
		"index", index,
		"reason", string(reason),
		"error", err,
	)
}
