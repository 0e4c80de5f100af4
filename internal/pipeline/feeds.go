package pipeline

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/normalize"
	"github.com/couchcryptid/firesync/internal/state"
	"github.com/google/uuid"
)

// IncidentsFeed is the feed name of the incident provider.
const IncidentsFeed = "incidents"

// Refresh starts a fetch of every configured feed and returns the cycle id.
// Feeds complete independently; each result is applied as it arrives.
func (p *Pipeline) Refresh() (string, error) {
	cycle := uuid.NewString()
	if !p.post(func(ctx context.Context) { p.startCycle(ctx, cycle) }) {
		return "", ErrStopped
	}
	return cycle, nil
}

func (p *Pipeline) startCycle(ctx context.Context, cycle string) {
	if p.disposed.Load() {
		return
	}
	p.logger.Info("refresh started", "cycle_id", cycle)

	if url := p.opts.Feeds.IncidentURL; url != "" {
		seq := p.issue(IncidentsFeed)
		p.spawn(ctx, func(ctx context.Context) task {
			return p.fetchIncidents(ctx, cycle, url, seq)
		})
	}
	for _, provider := range domain.Providers() {
		url := p.opts.Feeds.HotspotURLs[provider]
		if url == "" {
			continue
		}
		seq := p.issue(string(provider))
		p.spawn(ctx, func(ctx context.Context) task {
			return p.fetchHotspots(ctx, cycle, provider, url, seq)
		})
	}
}

// issue returns the next request sequence number for feed.
func (p *Pipeline) issue(feed string) uint64 {
	p.issued[feed]++
	return p.issued[feed]
}

// accept reports whether a completion may be applied. A completion is stale
// when a later request for the same feed has already been applied.
func (p *Pipeline) accept(feed string, seq uint64) bool {
	if p.disposed.Load() {
		return false
	}
	if seq <= p.applied[feed] {
		p.metrics.StaleCompletions.WithLabelValues(feed).Inc()
		p.metrics.FeedFetches.WithLabelValues(feed, "stale").Inc()
		p.logger.Debug("discarding stale completion", "feed", feed, "seq", seq, "applied", p.applied[feed])
		return false
	}
	p.applied[feed] = seq
	return true
}

// spawn runs work off the loop and queues the task it returns.
func (p *Pipeline) spawn(ctx context.Context, work func(ctx context.Context) task) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		if t := work(ctx); t != nil {
			p.post(t)
		}
	}()
}

func (p *Pipeline) fetchIncidents(ctx context.Context, cycle, url string, seq uint64) task {
	start := time.Now()
	incidents, report, err := p.loadIncidents(ctx, url)
	p.metrics.FeedFetchDuration.WithLabelValues(IncidentsFeed).Observe(time.Since(start).Seconds())

	return func(context.Context) {
		if !p.accept(IncidentsFeed, seq) {
			return
		}
		if err != nil {
			p.incidentsFailed(cycle, err)
			return
		}
		p.recordReport(IncidentsFeed, report)
		if _, err := p.apply(state.ReplaceIncidents{Incidents: incidents}); err != nil {
			p.logger.Warn("apply incidents failed", "cycle_id", cycle, "error", err)
			return
		}
		p.ready.Store(true)
		p.metrics.FeedFetches.WithLabelValues(IncidentsFeed, "success").Inc()
		p.logger.Info("incidents loaded", "cycle_id", cycle, "count", len(incidents), "dropped", report.TotalDropped())
		p.events.emit(domain.Event{
			Type:      domain.EventIncidentsLoaded,
			CycleID:   cycle,
			Incidents: incidents,
		})
	}
}

func (p *Pipeline) loadIncidents(ctx context.Context, url string) ([]domain.FireIncident, normalize.Report, error) {
	body, err := p.fetcher.Fetch(ctx, IncidentsFeed, url)
	if err != nil {
		return nil, normalize.Report{}, err
	}
	return p.transformer.Incidents(body)
}

func (p *Pipeline) incidentsFailed(cycle string, err error) {
	p.metrics.FeedFetches.WithLabelValues(IncidentsFeed, outcome(err)).Inc()
	p.logger.Error("incident feed failed", "cycle_id", cycle, "clear", p.opts.ClearOnFailure, "error", err)

	if _, aerr := p.apply(state.MarkIncidentsFailed{Err: err, Clear: p.opts.ClearOnFailure}); aerr != nil {
		p.logger.Warn("record incident failure failed", "cycle_id", cycle, "error", aerr)
		return
	}
	p.events.emit(domain.Event{
		Type:    domain.EventIncidentsLoadFailed,
		CycleID: cycle,
		Error:   err.Error(),
	})
}

func (p *Pipeline) fetchHotspots(ctx context.Context, cycle string, provider domain.Provider, url string, seq uint64) task {
	feed := string(provider)
	start := time.Now()
	hotspots, report, err := p.loadHotspots(ctx, provider, url)
	p.metrics.FeedFetchDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())

	return func(context.Context) {
		if !p.accept(feed, seq) {
			return
		}
		if err != nil {
			// Hotspots are supplementary: the provider shows nothing this cycle.
			p.metrics.FeedFetches.WithLabelValues(feed, outcome(err)).Inc()
			p.logger.Warn("hotspot feed failed", "cycle_id", cycle, "feed", feed, "error", err)
			if _, aerr := p.apply(state.ReplaceHotspots{Provider: provider}); aerr != nil {
				p.logger.Warn("clear hotspots failed", "feed", feed, "error", aerr)
			}
			return
		}
		p.recordReport(feed, report)
		if _, err := p.apply(state.ReplaceHotspots{Provider: provider, Hotspots: hotspots}); err != nil {
			p.logger.Warn("apply hotspots failed", "cycle_id", cycle, "feed", feed, "error", err)
			return
		}
		p.metrics.FeedFetches.WithLabelValues(feed, "success").Inc()
		p.logger.Info("hotspots loaded", "cycle_id", cycle, "feed", feed, "count", len(hotspots), "dropped", report.TotalDropped())
		p.events.emit(domain.Event{
			Type:     domain.EventHotspotsLoaded,
			CycleID:  cycle,
			Provider: provider,
			Hotspots: hotspots,
		})
	}
}

func (p *Pipeline) loadHotspots(ctx context.Context, provider domain.Provider, url string) ([]domain.Hotspot, normalize.Report, error) {
	body, err := p.fetcher.Fetch(ctx, string(provider), url)
	if err != nil {
		return nil, normalize.Report{}, err
	}
	return p.transformer.Hotspots(provider, body)
}

func (p *Pipeline) recordReport(feed string, report normalize.Report) {
	p.metrics.EntitiesNormalized.WithLabelValues(feed).Add(float64(report.Emitted))
	for reason, n := range report.Dropped {
		p.metrics.FeaturesDropped.WithLabelValues(feed, string(reason)).Add(float64(n))
	}

	p.reportsMu.Lock()
	p.reports[feed] = report
	p.reportsMu.Unlock()
}

// Reports returns the latest normalization report per feed.
func (p *Pipeline) Reports() map[string]normalize.Report {
	p.reportsMu.Lock()
	defer p.reportsMu.Unlock()
	return maps.Clone(p.reports)
}

func outcome(err error) string {
	if errors.Is(err, domain.ErrFeedMalformed) {
		return "malformed"
	}
	return "unreachable"
}
