package domain

// Provider identifies a satellite hotspot source.
type Provider string

const (
	// ProviderVIIRS carries no confidence value and is never filtered on it.
	ProviderVIIRS Provider = "viirs"
	// ProviderMODIS reports a 0-100 confidence and is subject to a floor.
	ProviderMODIS Provider = "modis"
)

// Providers lists every hotspot provider in display order.
func Providers() []Provider {
	return []Provider{ProviderVIIRS, ProviderMODIS}
}

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	return p == ProviderVIIRS || p == ProviderMODIS
}

// Hotspot is a single satellite thermal detection.
type Hotspot struct {
	ID         string   `json:"id"`
	Provider   Provider `json:"provider"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Confidence *float64 `json:"confidence"`
	Intensity  float64  `json:"intensity"`
	AgeHours   float64  `json:"age_hours"`
}
