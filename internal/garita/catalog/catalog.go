// Package catalog owns the control-point configuration used by the engine.
// It replaces lazy global caching with an explicit object: callers build it
// from a Source, take immutable Snapshots for each request and call Refresh
// when the configuration changes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
)

var ErrInvalidCatalog = errors.New("invalid control point catalog")

// Source produces the full list of control points.
type Source interface {
	Load(ctx context.Context) ([]model.ControlPoint, error)
}

// Static is a Source backed by a fixed slice.
type Static []model.ControlPoint

func (s Static) Load(context.Context) ([]model.ControlPoint, error) {
	out := make([]model.ControlPoint, len(s))
	copy(out, s)
	return out, nil
}

// Catalog holds the current Snapshot. It is safe for concurrent use.
type Catalog struct {
	src    Source
	onLoad func(ctx context.Context, points []model.ControlPoint) error

	mu    sync.RWMutex
	snap  *Snapshot
	group singleflight.Group
}

type Option func(*Catalog)

// WithOnLoad registers a hook run after every successful load and before the
// new snapshot is published, e.g. to mirror points into the database. A hook
// error aborts the load and keeps the previous snapshot.
func WithOnLoad(fn func(ctx context.Context, points []model.ControlPoint) error) Option {
	return func(c *Catalog) { c.onLoad = fn }
}

// New loads src once and returns the catalog.
func New(ctx context.Context, src Source, opts ...Option) (*Catalog, error) {
	c := &Catalog{src: src}
	for _, o := range opts {
		o(c)
	}
	if _, err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// MustStatic builds a catalog from points and panics if they are invalid.
// Intended for tests and fixed dev setups.
func MustStatic(points ...model.ControlPoint) *Catalog {
	c, err := New(context.Background(), Static(points))
	if err != nil {
		panic(err)
	}
	return c
}

// Snapshot returns the catalog currently in effect.
func (c *Catalog) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Refresh reloads the source. Concurrent callers share one load.
func (c *Catalog) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		points, err := c.src.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load control points: %w", err)
		}
		snap, err := NewSnapshot(points)
		if err != nil {
			return nil, err
		}
		if c.onLoad != nil {
			if err := c.onLoad(ctx, snap.All()); err != nil {
				return nil, fmt.Errorf("control point hook: %w", err)
			}
		}
		c.mu.Lock()
		c.snap = snap
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Snapshot is an immutable, validated view of the catalog.
type Snapshot struct {
	byID  map[model.ControlPointID]model.ControlPoint
	all   []model.ControlPoint
	gate  model.ControlPoint
	zones []model.ControlPoint
}

// NewSnapshot validates points: ids must be positive and unique, names
// non-empty, and exactly one point must be the gate.
func NewSnapshot(points []model.ControlPoint) (*Snapshot, error) {
	s := &Snapshot{byID: make(map[model.ControlPointID]model.ControlPoint, len(points))}
	gates := 0
	for _, p := range points {
		p.Name = strings.TrimSpace(p.Name)
		if p.ID <= 0 {
			return nil, fmt.Errorf("%w: control point id %d must be positive", ErrInvalidCatalog, p.ID)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("%w: control point %d has no name", ErrInvalidCatalog, p.ID)
		}
		if _, dup := s.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate control point id %d", ErrInvalidCatalog, p.ID)
		}
		switch p.Kind {
		case model.KindGate:
			gates++
			p.TrackPresence = false
			s.gate = p
		case model.KindInternalZone:
		default:
			return nil, fmt.Errorf("%w: control point %d has unknown kind %q", ErrInvalidCatalog, p.ID, p.Kind)
		}
		s.byID[p.ID] = p
		s.all = append(s.all, p)
		if p.IsTrackedZone() {
			s.zones = append(s.zones, p)
		}
	}
	if gates != 1 {
		return nil, fmt.Errorf("%w: expected exactly one gate, found %d", ErrInvalidCatalog, gates)
	}

	sort.Slice(s.all, func(i, j int) bool { return s.all[i].ID < s.all[j].ID })
	sort.SliceStable(s.zones, func(i, j int) bool {
		if s.zones[i].Priority != s.zones[j].Priority {
			return s.zones[i].Priority < s.zones[j].Priority
		}
		return s.zones[i].ID < s.zones[j].ID
	})
	return s, nil
}

func (s *Snapshot) Get(id model.ControlPointID) (model.ControlPoint, bool) {
	p, ok := s.byID[id]
	return p, ok
}

func (s *Snapshot) Gate() model.ControlPoint { return s.gate }

// TrackedZones returns the internal zones that take part in zone
// resolution, in resolution priority order.
func (s *Snapshot) TrackedZones() []model.ControlPoint {
	out := make([]model.ControlPoint, len(s.zones))
	copy(out, s.zones)
	return out
}

// All returns every point ordered by id.
func (s *Snapshot) All() []model.ControlPoint {
	out := make([]model.ControlPoint, len(s.all))
	copy(out, s.all)
	return out
}
