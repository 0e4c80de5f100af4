package normalize

import (
	"fmt"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/geo"
)

// Hotspots normalizes a hotspot payload. Points are independent and never
// deduplicated. Region and confidence-floor drops are counted but not logged
// individually.
func (n *Normalizer) Hotspots(src HotspotSource, payload []byte) ([]domain.Hotspot, Report, error) {
	feed := src.Feed()
	raws, err := decodeCollection(feed, src.CollectionType, payload)
	if err != nil {
		return nil, Report{Feed: feed}, err
	}
	report := newReport(feed, len(raws))

	hotspots := make([]domain.Hotspot, 0, len(raws))
	for i, raw := range raws {
		f, err := decodeFeature(raw)
		if err != nil {
			n.skip(&report, DropMalformedFeature, i, err)
			continue
		}
		if f.Geometry.Type != "Point" {
			n.skip(&report, DropMalformedFeature, i, fmt.Errorf("geometry type %q, want Point", f.Geometry.Type))
			continue
		}
		p, ok := geo.ParsePoint(f.Geometry.Coordinates)
		if !ok {
			n.skip(&report, DropInvalidCoordinate, i, fmt.Errorf("invalid coordinate %v", f.Geometry.Coordinates))
			continue
		}
		lat, lng := p[1], p[0]

		if len(src.Include) > 0 && !src.Include.Contains(lat, lng) {
			report.drop(DropOutsideRegion)
			continue
		}

		var confidence *float64
		if v, ok := numberProp(f.Properties, src.Fields.Confidence); ok {
			confidence = &v
		}
		if src.ConfidenceFloor > 0 && src.Fields.Confidence != "" {
			if confidence == nil || *confidence < src.ConfidenceFloor {
				report.drop(DropBelowConfidenceFloor)
				continue
			}
		}

		intensity, _ := numberProp(f.Properties, src.Fields.Intensity)
		age, _ := numberProp(f.Properties, src.Fields.AgeHours)
		id, ok := featureID(f.Properties, src.Fields.ID, f.ID)
		if !ok {
			id = fmt.Sprintf("%s_%d", src.Provider, i+1)
		}

		hotspots = append(hotspots, domain.Hotspot{
			ID:         id,
			Provider:   src.Provider,
			Latitude:   lat,
			Longitude:  lng,
			Confidence: confidence,
			Intensity:  intensity,
			AgeHours:   age,
		})
	}

	report.Emitted = len(hotspots)
	n.logger.Debug("hotspots normalized",
		"feed", feed,
		"received", report.Received,
		"emitted", report.Emitted,
		"dropped", report.TotalDropped(),
	)
	return hotspots, report, nil
}
