// Package domain models active wildfire incidents and satellite hotspots.
//
// # Data Sources
//
// Incident perimeters come from the WFIGS Interagency Perimeters (Current)
// ArcGIS feature service, queried as GeoJSON. Each feature is a Polygon or
// MultiPolygon whose ring coordinates are [lng, lat]. The same incident is
// often reported several times with different update stamps; normalization
// keeps the most recent report per incident name.
//
// Hotspots come from two ArcGIS-hosted thermal feeds:
//
//	VIIRS  properties: hours_old, frp             (no confidence)
//	MODIS  properties: HOURS_OLD, CONFIDENCE, FRP (confidence 0-100)
//
// Each hotspot feature is a Point with [lng, lat] coordinates.
//
// # Conventions
//
// Update stamps:
//
//	poly_DateCurrent is epoch milliseconds. An absent stamp sorts as epoch 0.
//
// Containment:
//
//	poly_PercentContained is 0-100. An absent value stays nil and is never
//	defaulted to 0.
//
// Severity classification:
//
//	Derived from burned area only:
//
//	  >= 10000 acres  high
//	  >=  1000 acres  medium
//	  otherwise       low
//
// Centroids:
//
//	The centroid of an incident is the arithmetic mean of the vertices of its
//	outer ring (or of every outer ring for a MultiPolygon). It is not area
//	weighted.
package domain
