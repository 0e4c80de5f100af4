package mapsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/geo"
	"github.com/couchcryptid/firesync/internal/observability"
	"github.com/couchcryptid/firesync/internal/state"
	"github.com/paulmach/orb"
)

var (
	// ErrDisposed is returned by every operation after Dispose.
	ErrDisposed = errors.New("synchronizer disposed")
	// ErrNotInitialized is returned by Reconcile before Init.
	ErrNotInitialized = errors.New("synchronizer not initialized")
)

// Lifecycle is the rendering-surface lifecycle state.
type Lifecycle string

const (
	Uninitialized Lifecycle = "uninitialized"
	Initializing  Lifecycle = "initializing"
	Ready         Lifecycle = "ready"
	Reconciling   Lifecycle = "reconciling"
	Disposed      Lifecycle = "disposed"
)

type pluginStatus int

const (
	pluginLoading pluginStatus = iota
	pluginReady
	pluginFailed
)

// SelectionFit is applied when the selected incident changes.
var SelectionFit = FitOptions{Padding: 20, MaxZoom: 15}

// Result counts the surface operations of one reconciliation pass.
type Result struct {
	Created         int
	Destroyed       int
	DensityDeferred bool
}

type handle struct {
	ref         Ref
	fingerprint string
}

// Synchronizer reconciles layer snapshots against a Surface. It holds at most
// one live drawable per (layer kind, entity) pair. Within a pass every
// destroy runs before any create.
type Synchronizer struct {
	surface Surface
	plugin  PluginLoader
	logger  *slog.Logger
	metrics *observability.Metrics

	mu           sync.Mutex
	phase        Lifecycle
	density      pluginStatus
	live         map[key]handle
	pending      *drawSpec
	lastSelected string

	unsubscribeClick func()
	stopResize       func()
	cancelLoad       context.CancelFunc
	settled          chan struct{}

	listeners    map[uint64]func(entityID string)
	nextListener uint64
}

// New creates a Synchronizer for surface. plugin may be nil when density
// layers need no external dependency.
func New(surface Surface, plugin PluginLoader, logger *slog.Logger, metrics *observability.Metrics) *Synchronizer {
	return &Synchronizer{
		surface:   surface,
		plugin:    plugin,
		logger:    logger,
		metrics:   metrics,
		phase:     Uninitialized,
		live:      make(map[key]handle),
		settled:   make(chan struct{}),
		listeners: make(map[uint64]func(string)),
	}
}

// State returns the current lifecycle state.
func (s *Synchronizer) State() Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// PluginSettled is closed once the density plugin has loaded or failed, or
// when the synchronizer is disposed before Init.
func (s *Synchronizer) PluginSettled() <-chan struct{} {
	return s.settled
}

// DensityAvailable reports whether density layers can be drawn.
func (s *Synchronizer) DensityAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.density == pluginReady
}

// Init attaches click and resize observers and starts loading the density
// plugin. Reconcile may run while the plugin is still loading. Calling Init
// again is a no-op.
func (s *Synchronizer) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case Disposed:
		return ErrDisposed
	case Uninitialized:
	default:
		return nil
	}

	s.unsubscribeClick = s.surface.OnEntityClicked(s.handleClick)
	if obs, ok := s.surface.(ContainerObserver); ok {
		s.stopResize = obs.ObserveContainerResize(s.handleResize)
	}

	if s.plugin == nil {
		s.density = pluginReady
		s.phase = Ready
		close(s.settled)
		return nil
	}

	loadCtx, cancel := context.WithCancel(ctx)
	s.cancelLoad = cancel
	s.density = pluginLoading
	s.phase = Initializing
	go s.loadPlugin(loadCtx)
	return nil
}

func (s *Synchronizer) loadPlugin(ctx context.Context) {
	defer close(s.settled)
	err := s.plugin.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Disposed {
		return
	}
	s.phase = Ready

	if err != nil {
		s.density = pluginFailed
		s.pending = nil
		s.logger.Warn("density overlay unavailable", "error", fmt.Errorf("%w: %w", domain.ErrPluginLoadFailed, err))
		return
	}

	s.density = pluginReady
	s.logger.Debug("density plugin loaded")
	if s.pending != nil {
		spec := *s.pending
		s.pending = nil
		s.create(key{LayerDensity, densityEntity}, spec)
		s.recordLive()
	}
}

// Reconcile brings the surface in line with snap and returns the operations
// it performed. Running it twice with the same snapshot performs nothing the
// second time.
func (s *Synchronizer) Reconcile(snap state.Snapshot) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case Disposed:
		return Result{}, ErrDisposed
	case Uninitialized:
		return Result{}, ErrNotInitialized
	}
	resume := s.phase
	s.phase = Reconciling
	defer func() { s.phase = resume }()

	desired := plan(snap)
	var res Result

	// Live drawables whose spec is unchanged stay; every other one goes.
	var stale []key
	for k, h := range s.live {
		if spec, ok := desired[k]; ok && spec.fingerprint == h.fingerprint {
			delete(desired, k)
			continue
		}
		stale = append(stale, k)
	}
	sortKeys(stale)
	for _, k := range stale {
		s.destroy(k)
		res.Destroyed++
	}

	// The latest reconcile always replaces any queued density layer.
	s.pending = nil

	creates := make([]key, 0, len(desired))
	for k := range desired {
		creates = append(creates, k)
	}
	sortKeys(creates)
	for _, k := range creates {
		spec := desired[k]
		if k.kind == LayerDensity {
			switch s.density {
			case pluginLoading:
				s.pending = &spec
				res.DensityDeferred = true
				continue
			case pluginFailed:
				continue
			}
		}
		if s.create(k, spec) {
			res.Created++
		}
	}

	s.fitSelection(snap)
	s.recordLive()

	s.logger.Debug("reconciled",
		"version", snap.Version,
		"created", res.Created,
		"destroyed", res.Destroyed,
		"density_deferred", res.DensityDeferred,
		"live", len(s.live),
	)
	return res, nil
}

// OnEntitySelected registers fn for clicks on incident drawables.
func (s *Synchronizer) OnEntitySelected(fn func(entityID string)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// LiveEntities returns the entity ids drawn for kind, sorted.
func (s *Synchronizer) LiveEntities(kind LayerKind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for k := range s.live {
		if k.kind == kind {
			ids = append(ids, k.entity)
		}
	}
	slices.Sort(ids)
	return ids
}

// LiveCount returns the number of live drawables across all kinds.
func (s *Synchronizer) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Dispose removes every live drawable, detaches observers and releases the
// click registration. It may be called in any state and more than once.
func (s *Synchronizer) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == Disposed {
		return
	}
	neverInitialized := s.phase == Uninitialized
	s.phase = Disposed
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	if neverInitialized {
		close(s.settled)
	}

	keys := make([]key, 0, len(s.live))
	for k := range s.live {
		keys = append(keys, k)
	}
	sortKeys(keys)
	for _, k := range keys {
		s.destroy(k)
	}
	s.pending = nil

	if s.stopResize != nil {
		s.stopResize()
		s.stopResize = nil
	}
	if s.unsubscribeClick != nil {
		s.unsubscribeClick()
		s.unsubscribeClick = nil
	}
	clear(s.listeners)
	s.recordLive()
	s.logger.Debug("synchronizer disposed", "destroyed", len(keys))
}

func (s *Synchronizer) create(k key, spec drawSpec) bool {
	ref, err := spec.create(s.surface)
	if err != nil {
		s.logger.Warn("create drawable failed", "kind", string(k.kind), "entity", k.entity, "error", err)
		return false
	}
	s.live[k] = handle{ref: ref, fingerprint: spec.fingerprint}
	s.metrics.ReconcileOperations.WithLabelValues("create", string(k.kind)).Inc()
	return true
}

// destroy forgets the handle even when removal fails, so a broken surface
// object is never drawn twice.
func (s *Synchronizer) destroy(k key) {
	h, ok := s.live[k]
	if !ok {
		return
	}
	delete(s.live, k)
	if err := s.surface.RemoveDrawable(h.ref); err != nil && !errors.Is(err, ErrDrawableGone) {
		s.logger.Warn("remove drawable failed", "kind", string(k.kind), "entity", k.entity, "error", err)
	}
	s.metrics.ReconcileOperations.WithLabelValues("destroy", string(k.kind)).Inc()
}

func (s *Synchronizer) fitSelection(snap state.Snapshot) {
	if snap.SelectedIncidentID == s.lastSelected {
		return
	}
	s.lastSelected = snap.SelectedIncidentID

	inc, ok := snap.SelectedIncident()
	if !ok {
		return
	}
	bounds, ok := geo.Bounds(inc.Geometry)
	if !ok {
		p := orb.Point{inc.Centroid.Lng, inc.Centroid.Lat}
		bounds = orb.Bound{Min: p, Max: p}
	}
	if err := s.surface.FitViewToBounds(bounds, SelectionFit); err != nil {
		s.logger.Warn("fit view failed", "incident", inc.ID, "error", err)
	}
}

func (s *Synchronizer) handleClick(entityID string) {
	s.mu.Lock()
	if s.phase == Disposed {
		s.mu.Unlock()
		return
	}
	_, marker := s.live[key{LayerIncidentMarkers, entityID}]
	_, polygon := s.live[key{LayerIncidentPolygons, entityID}]
	if !marker && !polygon {
		s.mu.Unlock()
		return
	}
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]func(string), len(ids))
	for i, id := range ids {
		listeners[i] = s.listeners[id]
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(entityID)
	}
}

func (s *Synchronizer) handleResize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Disposed {
		return
	}
	if obs, ok := s.surface.(ContainerObserver); ok {
		obs.InvalidateSize()
	}
}

func (s *Synchronizer) recordLive() {
	counts := make(map[LayerKind]int)
	for k := range s.live {
		counts[k.kind]++
	}
	for _, kind := range LayerKinds() {
		s.metrics.LiveDrawables.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}
}

func sortKeys(keys []key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].entity < keys[j].entity
	})
}
