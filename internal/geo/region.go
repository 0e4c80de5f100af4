package geo

import "github.com/paulmach/orb"

// Region is a set of boxes tested with OR semantics, so disjoint areas such as
// a mainland and its islands can form one region.
type Region []orb.Bound

// Box builds a bound from latitude and longitude limits.
func Box(minLat, maxLat, minLng, maxLng float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{minLng, minLat},
		Max: orb.Point{maxLng, maxLat},
	}
}

// Contains reports whether (lat, lng) lies inside any box, edges included.
func (r Region) Contains(lat, lng float64) bool {
	return IsInRegion(lat, lng, r)
}

// IsInRegion reports whether (lat, lng) lies inside any box of region, edges
// included. An empty region contains nothing.
func IsInRegion(lat, lng float64, region Region) bool {
	p := orb.Point{lng, lat}
	for _, b := range region {
		if b.Contains(p) {
			return true
		}
	}
	return false
}

// Regions used by the bundled providers.
var (
	// UnitedStates covers the contiguous states, Alaska and Hawaii.
	UnitedStates = Region{
		Box(24.396308, 49.384358, -125.0, -66.93457),
		Box(51.2, 71.5, -179.15, -129.97),
		Box(18.5, 22.5, -160.5, -154.5),
	}

	// Alaska is the incident exclusion box.
	Alaska = Region{Box(51, 72, -173, -130)}
)
