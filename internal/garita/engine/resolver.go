package engine

import (
	"context"
	"fmt"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
)

// ZoneState is the internal zone a person is currently inside, if any.
type ZoneState struct {
	Zone *model.ControlPoint
}

func (z ZoneState) Inside() bool { return z.Zone != nil }

// In reports whether the state is inside the zone with the given id.
func (z ZoneState) In(id model.ControlPointID) bool {
	return z.Zone != nil && z.Zone.ID == id
}

// pointPresence holds the latest entry and exit of a person at one point.
type pointPresence struct {
	entry *model.Movement
	exit  *model.Movement
}

// inside is true when an entry exists and any exit strictly precedes it.
func (p pointPresence) inside() bool {
	return p.entry != nil && p.entry.Supersedes(p.exit)
}

func latestPair(ctx context.Context, l store.Ledger, dni string, id model.ControlPointID) (pointPresence, error) {
	entry, err := l.LatestMovement(ctx, store.Latest(dni).At(id).Going(model.Entry))
	if err != nil {
		return pointPresence{}, fmt.Errorf("latest entry at %d: %w", id, err)
	}
	exit, err := l.LatestMovement(ctx, store.Latest(dni).At(id).Going(model.Exit))
	if err != nil {
		return pointPresence{}, fmt.Errorf("latest exit at %d: %w", id, err)
	}
	return pointPresence{entry: entry, exit: exit}, nil
}

// ResolveCurrentZone returns the first tracked zone, in priority order, that
// the person is inside. It never writes and does not try to repair a ledger
// that shows the person in several zones at once.
func (e *Engine) ResolveCurrentZone(ctx context.Context, l store.Ledger, dni string) (ZoneState, error) {
	for _, z := range e.Points().TrackedZones() {
		p, err := latestPair(ctx, l, dni, z.ID)
		if err != nil {
			return ZoneState{}, err
		}
		if p.inside() {
			z := z
			return ZoneState{Zone: &z}, nil
		}
	}
	return ZoneState{}, nil
}

// InsidePlant reports whether the person's latest gate entry is strictly
// newer than their latest gate exit.
func (e *Engine) InsidePlant(ctx context.Context, l store.Ledger, dni string) (bool, error) {
	p, err := latestPair(ctx, l, dni, e.Points().Gate().ID)
	if err != nil {
		return false, err
	}
	return p.inside(), nil
}

// State computes the presence reported alongside rejections.
func (e *Engine) State(ctx context.Context, l store.Ledger, dni string) (State, error) {
	inside, err := e.InsidePlant(ctx, l, dni)
	if err != nil {
		return State{}, err
	}
	zone, err := e.ResolveCurrentZone(ctx, l, dni)
	if err != nil {
		return State{}, err
	}
	return State{InsidePlant: inside, Zone: zone.Zone}, nil
}

// Presence is the per-point breakdown behind a person's state.
type Presence struct {
	InsidePlant bool
	Current     ZoneState
	// Zones lists every tracked zone the ledger shows the person inside, in
	// priority order. More than one entry means a stale presence.
	Zones []model.ControlPoint
}

// Presence reports every tracked zone the person appears inside, for
// diagnostics. Current is the zone ResolveCurrentZone would return.
func (e *Engine) Presence(ctx context.Context, l store.Ledger, dni string) (Presence, error) {
	var out Presence
	inside, err := e.InsidePlant(ctx, l, dni)
	if err != nil {
		return Presence{}, err
	}
	out.InsidePlant = inside

	for _, z := range e.Points().TrackedZones() {
		p, err := latestPair(ctx, l, dni, z.ID)
		if err != nil {
			return Presence{}, err
		}
		if p.inside() {
			out.Zones = append(out.Zones, z)
		}
	}
	if len(out.Zones) > 0 {
		z := out.Zones[0]
		out.Current = ZoneState{Zone: &z}
	}
	return out, nil
}
