package pipeline

import (
	"context"
	"errors"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/state"
)

// ErrPredictionsDisabled is returned when no prediction backend is configured.
var ErrPredictionsDisabled = errors.New("predictions disabled")

// Availability answers whether a prediction exists for an incident name.
type Availability interface {
	Available(ctx context.Context, name string) (bool, error)
	Invalidate(name string)
}

// PredictionSource fetches prediction overlay data for an incident name.
type PredictionSource interface {
	Prediction(ctx context.Context, name string) (domain.OverlayData, error)
}

// Predictions wires the availability cache to the overlay data source.
type Predictions struct {
	Cache  Availability
	Source PredictionSource
}

// PredictionAvailable reports whether a prediction exists for name.
func (p *Pipeline) PredictionAvailable(ctx context.Context, name string) (bool, error) {
	if p.opts.Predictions == nil {
		return false, ErrPredictionsDisabled
	}
	return p.opts.Predictions.Cache.Available(ctx, name)
}

// InvalidatePrediction forgets the cached availability of name.
func (p *Pipeline) InvalidatePrediction(name string) error {
	if p.opts.Predictions == nil {
		return ErrPredictionsDisabled
	}
	p.opts.Predictions.Cache.Invalidate(name)
	return nil
}

// selectionChanged runs on the loop goroutine when the selected incident
// changes. Overlay data always belongs to the current selection.
func (p *Pipeline) selectionChanged(cur state.Snapshot) {
	for _, kind := range domain.OverlayKinds() {
		if o := cur.Overlays[kind]; len(o.Data.Perimeters) > 0 || len(o.Data.Points) > 0 {
			if _, err := p.apply(state.SetOverlayData{Kind: kind}); err != nil {
				p.logger.Warn("clear overlay failed", "overlay", string(kind), "error", err)
			}
		}
	}

	inc, ok := cur.SelectedIncident()
	if !ok {
		return
	}
	p.events.emit(domain.Event{Type: domain.EventEntitySelected, EntityID: inc.ID})

	if p.opts.Predictions == nil || p.runCtx == nil {
		return
	}
	id, name := inc.ID, inc.Name
	p.spawn(p.runCtx, func(ctx context.Context) task {
		return p.loadPrediction(ctx, id, name)
	})
}

func (p *Pipeline) loadPrediction(ctx context.Context, id, name string) task {
	pr := p.opts.Predictions
	available, err := pr.Cache.Available(ctx, name)
	if err != nil {
		p.logger.Warn("prediction availability check failed", "incident", id, "name", name, "error", err)
		return nil
	}
	if !available {
		p.logger.Debug("no prediction for incident", "incident", id, "name", name)
		return nil
	}

	data, err := pr.Source.Prediction(ctx, name)
	if err != nil {
		p.logger.Warn("prediction fetch failed", "incident", id, "name", name, "error", err)
		return nil
	}
	return func(context.Context) { p.applyPrediction(id, data) }
}

// applyPrediction installs overlay data only while its incident is selected.
func (p *Pipeline) applyPrediction(id string, data domain.OverlayData) {
	if p.disposed.Load() {
		return
	}
	if p.store.Snapshot().SelectedIncidentID != id {
		p.logger.Debug("discarding prediction for deselected incident", "incident", id)
		return
	}
	intents := []state.Intent{
		state.SetOverlayData{Kind: domain.OverlayPredictedPerimeters, Data: domain.OverlayData{Perimeters: data.Perimeters}},
		state.SetOverlayData{Kind: domain.OverlayPredictionProbability, Data: domain.OverlayData{Points: data.Points}},
	}
	for _, in := range intents {
		if _, err := p.apply(in); err != nil {
			p.logger.Warn("apply prediction failed", "incident", id, "error", err)
			return
		}
	}
	p.logger.Debug("prediction applied", "incident", id, "perimeters", len(data.Perimeters), "points", len(data.Points))
}
