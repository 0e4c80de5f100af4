// Package memory is an in-process rendering surface. It keeps every drawable
// as a GeoJSON feature so the current map can be inspected over HTTP and in
// tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/mapsync"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrNotClickable is returned by Click when no clickable drawable carries the
// entity id.
var ErrNotClickable = errors.New("no clickable drawable for entity")

// Fit is one recorded FitViewToBounds call.
type Fit struct {
	Bounds  orb.Bound
	Options mapsync.FitOptions
}

type drawable struct {
	kind      mapsync.LayerKind
	entity    string
	clickable bool
	feature   *geojson.Feature
	createdAt time.Time
}

// Surface implements mapsync.Surface and mapsync.ContainerObserver.
type Surface struct {
	logger *slog.Logger

	mu            sync.Mutex
	drawables     map[mapsync.Ref]drawable
	clickFns      map[uint64]func(string)
	resizeFns     map[uint64]func()
	nextSub       uint64
	fits          []Fit
	invalidations int
}

// New creates an empty surface.
func New(logger *slog.Logger) *Surface {
	return &Surface{
		logger:    logger,
		drawables: make(map[mapsync.Ref]drawable),
		clickFns:  make(map[uint64]func(string)),
		resizeFns: make(map[uint64]func()),
	}
}

func (s *Surface) add(kind mapsync.LayerKind, entity string, clickable bool, f *geojson.Feature) mapsync.Ref {
	ref := mapsync.Ref(uuid.NewString())
	f.ID = string(ref)
	f.Properties["layer"] = string(kind)
	f.Properties["entity_id"] = entity

	s.mu.Lock()
	s.drawables[ref] = drawable{
		kind:      kind,
		entity:    entity,
		clickable: clickable,
		feature:   f,
		createdAt: domain.Now(),
	}
	s.mu.Unlock()

	s.logger.Debug("drawable created", "ref", string(ref), "layer", string(kind), "entity", entity)
	return ref
}

func (s *Surface) CreateMarker(m mapsync.Marker) (mapsync.Ref, error) {
	f := geojson.NewFeature(orb.Point{m.Position.Lng, m.Position.Lat})
	if m.Label != "" {
		f.Properties["label"] = m.Label
	}
	if m.Severity != "" {
		f.Properties["severity"] = string(m.Severity)
	}
	if m.Provider != "" {
		f.Properties["provider"] = string(m.Provider)
	}
	f.Properties["value"] = m.Value
	if m.HasConfidence {
		f.Properties["confidence"] = m.Confidence
	}
	f.Properties["selected"] = m.Selected
	return s.add(m.Kind, m.EntityID, m.Clickable, f), nil
}

func (s *Surface) CreatePolygon(p mapsync.Polygon) (mapsync.Ref, error) {
	if len(p.Rings) == 0 {
		return "", fmt.Errorf("create polygon %s: no rings", p.EntityID)
	}
	mp := make(orb.MultiPolygon, 0, len(p.Rings))
	for _, ring := range p.Rings {
		r := make(orb.Ring, 0, len(ring)+1)
		for _, ll := range ring {
			r = append(r, orb.Point{ll.Lng, ll.Lat})
		}
		if !r.Closed() {
			r = append(r, r[0])
		}
		mp = append(mp, orb.Polygon{r})
	}

	var g orb.Geometry = mp
	if len(mp) == 1 {
		g = mp[0]
	}
	f := geojson.NewFeature(g)
	if p.Label != "" {
		f.Properties["label"] = p.Label
	}
	if p.Severity != "" {
		f.Properties["severity"] = string(p.Severity)
	}
	f.Properties["selected"] = p.Selected
	return s.add(p.Kind, p.EntityID, p.Clickable, f), nil
}

func (s *Surface) CreateDensityLayer(d mapsync.DensityLayer) (mapsync.Ref, error) {
	points := make(orb.MultiPoint, len(d.Points))
	weights := make([]float64, len(d.Points))
	for i, p := range d.Points {
		points[i] = orb.Point{p.Lng, p.Lat}
		weights[i] = p.Weight
	}
	f := geojson.NewFeature(points)
	f.Properties["weights"] = weights
	f.Properties["radius"] = d.Options.Radius
	f.Properties["blur"] = d.Options.Blur
	f.Properties["max_zoom"] = d.Options.MaxZoom
	return s.add(mapsync.LayerDensity, "density", false, f), nil
}

func (s *Surface) RemoveDrawable(ref mapsync.Ref) error {
	s.mu.Lock()
	d, ok := s.drawables[ref]
	delete(s.drawables, ref)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("remove %s: %w", ref, mapsync.ErrDrawableGone)
	}
	s.logger.Debug("drawable removed", "ref", string(ref), "layer", string(d.kind), "entity", d.entity)
	return nil
}

func (s *Surface) FitViewToBounds(b orb.Bound, opts mapsync.FitOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fits = append(s.fits, Fit{Bounds: b, Options: opts})
	return nil
}

func (s *Surface) OnEntityClicked(fn func(entityID string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.clickFns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.clickFns, id)
	}
}

func (s *Surface) ObserveContainerResize(onResize func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.resizeFns[id] = onResize
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.resizeFns, id)
	}
}

func (s *Surface) InvalidateSize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidations++
}

// Click simulates a user clicking a drawable of entityID.
func (s *Surface) Click(entityID string) error {
	s.mu.Lock()
	found := false
	for _, d := range s.drawables {
		if d.clickable && d.entity == entityID {
			found = true
			break
		}
	}
	fns := sortedFuncs(s.clickFns)
	s.mu.Unlock()

	if !found {
		return fmt.Errorf("click %q: %w", entityID, ErrNotClickable)
	}
	for _, fn := range fns {
		fn(entityID)
	}
	return nil
}

// Resize notifies resize observers as if the container changed size.
func (s *Surface) Resize() {
	s.mu.Lock()
	fns := sortedFuncs(s.resizeFns)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Count returns the number of drawables of kind.
func (s *Surface) Count(kind mapsync.LayerKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.drawables {
		if d.kind == kind {
			n++
		}
	}
	return n
}

// Fits returns every recorded view fit, oldest first.
func (s *Surface) Fits() []Fit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.fits)
}

// Invalidations returns how many times the surface was asked to re-measure.
func (s *Surface) Invalidations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidations
}

// Layers returns every drawable as a feature, in drawing order.
func (s *Surface) Layers() *geojson.FeatureCollection {
	s.mu.Lock()
	ds := make([]drawable, 0, len(s.drawables))
	for _, d := range s.drawables {
		ds = append(ds, d)
	}
	s.mu.Unlock()

	order := make(map[mapsync.LayerKind]int)
	for i, k := range mapsync.LayerKinds() {
		order[k] = i
	}
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].kind != ds[j].kind {
			return order[ds[i].kind] < order[ds[j].kind]
		}
		if ds[i].entity != ds[j].entity {
			return ds[i].entity < ds[j].entity
		}
		return ds[i].createdAt.Before(ds[j].createdAt)
	})

	fc := geojson.NewFeatureCollection()
	for _, d := range ds {
		fc.Append(d.feature)
	}
	return fc
}

func sortedFuncs[F any](m map[uint64]F) []F {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]F, len(ids))
	for i, id := range ids {
		out[i] = m[id]
	}
	return out
}

// Plugin simulates loading the density rendering plugin.
type Plugin struct {
	Delay time.Duration
	Err   error
}

// Load waits Delay and then returns Err.
func (p Plugin) Load(ctx context.Context) error {
	if p.Delay > 0 {
		t := time.NewTimer(p.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.Err
}
