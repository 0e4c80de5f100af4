package normalize

// DropReason says why a raw feature did not become an entity.
type DropReason string

const (
	DropMalformedFeature     DropReason = "malformed_feature"
	DropInvalidGeometry      DropReason = "invalid_geometry"
	DropStale                DropReason = "stale"
	DropSuperseded           DropReason = "superseded"
	DropExcludedRegion       DropReason = "excluded_region"
	DropOutsideRegion        DropReason = "outside_region"
	DropInvalidCoordinate    DropReason = "invalid_coordinate"
	DropBelowConfidenceFloor DropReason = "below_confidence_floor"
)

// Report summarizes one normalization run.
type Report struct {
	Feed     string             `json:"feed"`
	Received int                `json:"received"`
	Emitted  int                `json:"emitted"`
	Dropped  map[DropReason]int `json:"dropped,omitempty"`
}

func newReport(feed string, received int) Report {
	return Report{Feed: feed, Received: received, Dropped: make(map[DropReason]int)}
}

func (r *Report) drop(reason DropReason) {
	r.Dropped[reason]++
}

// TotalDropped sums every drop reason.
func (r Report) TotalDropped() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}
