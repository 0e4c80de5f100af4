package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/normalize"
)

// Transformer turns raw feed payloads into canonical entities.
type Transformer interface {
	Incidents(payload []byte) ([]domain.FireIncident, normalize.Report, error)
	Hotspots(provider domain.Provider, payload []byte) ([]domain.Hotspot, normalize.Report, error)
}

// FeedTransformer implements Transformer with the bundled provider field
// mappings.
type FeedTransformer struct {
	normalizer *normalize.Normalizer
	incidents  normalize.IncidentSource
	hotspots   map[domain.Provider]normalize.HotspotSource
}

// NewTransformer creates a FeedTransformer for one incident source and any
// number of hotspot sources.
func NewTransformer(incidents normalize.IncidentSource, hotspots []normalize.HotspotSource, logger *slog.Logger) *FeedTransformer {
	byProvider := make(map[domain.Provider]normalize.HotspotSource, len(hotspots))
	for _, src := range hotspots {
		byProvider[src.Provider] = src
	}
	return &FeedTransformer{
		normalizer: normalize.New(logger),
		incidents:  incidents,
		hotspots:   byProvider,
	}
}

func (t *FeedTransformer) Incidents(payload []byte) ([]domain.FireIncident, normalize.Report, error) {
	return t.normalizer.Incidents(t.incidents, payload)
}

func (t *FeedTransformer) Hotspots(provider domain.Provider, payload []byte) ([]domain.Hotspot, normalize.Report, error) {
	src, ok := t.hotspots[provider]
	if !ok {
		return nil, normalize.Report{}, fmt.Errorf("no hotspot source for provider %q", provider)
	}
	return t.normalizer.Hotspots(src, payload)
}
