// Package pipeline runs a map session: it fetches and normalizes feeds,
// sequences every state change through one event loop, keeps the rendering
// surface reconciled and publishes collaborator events.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/mapsync"
	"github.com/couchcryptid/firesync/internal/normalize"
	"github.com/couchcryptid/firesync/internal/observability"
	"github.com/couchcryptid/firesync/internal/state"
)

// ErrStopped is returned by operations submitted after the session stopped.
var ErrStopped = errors.New("session stopped")

// Fetcher downloads a raw feed payload.
type Fetcher interface {
	Fetch(ctx context.Context, feed, url string) ([]byte, error)
}

// Renderer reconciles snapshots against the rendering surface and reports
// clicks on incidents.
type Renderer interface {
	Reconcile(snap state.Snapshot) (mapsync.Result, error)
	OnEntitySelected(fn func(entityID string)) (unsubscribe func())
}

// Feeds lists where each feed is fetched from. A provider with no URL is
// not fetched.
type Feeds struct {
	IncidentURL string
	HotspotURLs map[domain.Provider]string
}

// Options configures a Pipeline.
type Options struct {
	Feeds Feeds
	// ClearOnFailure empties the incident set when the incident feed fails.
	// Otherwise the previous set is retained and flagged as failed.
	ClearOnFailure bool
	// Predictions is optional; without it overlays stay empty.
	Predictions *Predictions
	// Sinks receive every collaborator event.
	Sinks []EventSink
}

type task func(ctx context.Context)

// Pipeline owns the layer state for one session. All state mutation happens
// on the goroutine running Run.
type Pipeline struct {
	fetcher     Fetcher
	transformer Transformer
	renderer    Renderer
	store       *state.Store
	opts        Options
	logger      *slog.Logger
	metrics     *observability.Metrics

	tasks    chan task
	done     chan struct{}
	stopOnce sync.Once
	disposed atomic.Bool
	ready    atomic.Bool
	inflight sync.WaitGroup

	// Touched only on the loop goroutine.
	runCtx  context.Context
	issued  map[string]uint64
	applied map[string]uint64

	reportsMu sync.Mutex
	reports   map[string]normalize.Report

	events *eventBus

	unsubscribeStore    func()
	unsubscribeRenderer func()
}

// New creates a Pipeline. renderer may be nil for a headless session.
func New(f Fetcher, t Transformer, renderer Renderer, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	p := &Pipeline{
		fetcher:     f,
		transformer: t,
		renderer:    renderer,
		store:       state.NewStore(),
		opts:        opts,
		logger:      logger,
		metrics:     metrics,
		tasks:       make(chan task, 64),
		done:        make(chan struct{}),
		issued:      make(map[string]uint64),
		applied:     make(map[string]uint64),
		reports:     make(map[string]normalize.Report),
		events:      newEventBus(opts.Sinks, logger),
	}

	p.unsubscribeStore = p.store.Subscribe(p.onStateChange)
	if renderer != nil {
		p.unsubscribeRenderer = renderer.OnEntitySelected(p.onEntityClicked)
	}
	return p
}

// CheckReadiness returns nil once an incident load has succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.disposed.Load() {
		return ErrStopped
	}
	if !p.ready.Load() {
		return errors.New("incidents have not loaded yet")
	}
	return nil
}

// Run processes queued work until ctx is cancelled, then stops the session.
// After Run returns no feed completion can change the state.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("session started",
		"incident_feed", p.opts.Feeds.IncidentURL != "",
		"hotspot_feeds", len(p.opts.Feeds.HotspotURLs),
		"predictions", p.opts.Predictions != nil,
	)
	p.metrics.SessionRunning.Set(1)
	defer p.metrics.SessionRunning.Set(0)

	p.runCtx = ctx
	go p.events.run()

	for {
		select {
		case <-ctx.Done():
			p.stop()
			p.logger.Info("session stopping", "reason", ctx.Err())
			return nil
		case t := <-p.tasks:
			t(ctx)
		}
	}
}

// stop disposes the session. In-flight fetches observe the disposed guard
// and are waited for before the event bus drains.
func (p *Pipeline) stop() {
	p.stopOnce.Do(func() {
		p.disposed.Store(true)
		close(p.done)
		if p.unsubscribeRenderer != nil {
			p.unsubscribeRenderer()
		}
		p.unsubscribeStore()
		p.store.Close()
		p.inflight.Wait()
		p.events.close()
	})
}

// post queues t for the loop goroutine. It reports false once the session
// has stopped.
func (p *Pipeline) post(t task) bool {
	if p.disposed.Load() {
		return false
	}
	select {
	case p.tasks <- t:
		return true
	case <-p.done:
		return false
	}
}

// Snapshot returns the current layer state.
func (p *Pipeline) Snapshot() state.Snapshot {
	return p.store.Snapshot()
}

// Dispatch applies a collaborator intent on the loop goroutine and returns
// the resulting snapshot.
func (p *Pipeline) Dispatch(ctx context.Context, intent state.Intent) (state.Snapshot, error) {
	type result struct {
		snap state.Snapshot
		err  error
	}
	reply := make(chan result, 1)
	ok := p.post(func(context.Context) {
		snap, err := p.apply(intent)
		reply <- result{snap, err}
	})
	if !ok {
		return state.Snapshot{}, ErrStopped
	}

	select {
	case r := <-reply:
		return r.snap, r.err
	case <-ctx.Done():
		return state.Snapshot{}, ctx.Err()
	case <-p.done:
		return state.Snapshot{}, ErrStopped
	}
}

// apply is the single mutation path. It must run on the loop goroutine.
func (p *Pipeline) apply(intent state.Intent) (state.Snapshot, error) {
	if p.disposed.Load() {
		return state.Snapshot{}, ErrStopped
	}
	snap, err := p.store.Dispatch(intent)
	if errors.Is(err, state.ErrDisposed) {
		return snap, ErrStopped
	}
	return snap, err
}

// onStateChange runs on the loop goroutine after every applied intent.
func (p *Pipeline) onStateChange(prev, cur state.Snapshot) {
	if p.renderer != nil {
		if _, err := p.renderer.Reconcile(cur); err != nil {
			p.logger.Warn("reconcile failed", "version", cur.Version, "error", err)
		}
	}
	if prev.SelectedIncidentID != cur.SelectedIncidentID {
		p.selectionChanged(cur)
	}
}

// onEntityClicked may run on any goroutine.
func (p *Pipeline) onEntityClicked(entityID string) {
	p.post(func(context.Context) {
		if _, err := p.apply(state.SelectIncident{ID: entityID}); err != nil {
			p.logger.Warn("select clicked incident failed", "incident", entityID, "error", err)
		}
	})
}
