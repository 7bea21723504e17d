package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
)

// needsClosure applies the closure decision rule: the person is inside zone
// Z and is either leaving through the gate or entering anywhere other than
// the gate or Z.
func needsClosure(gate model.ControlPointID, target model.ControlPointID, dir model.Direction, current ZoneState) bool {
	if !current.Inside() {
		return false
	}
	if target == gate {
		return dir == model.Exit
	}
	return dir == model.Entry && target != current.Zone.ID
}

// MaybeCloseZone appends a synthetic exit from the current zone when the
// requested movement implies the person already left it. at is the time of
// the requested movement; the closure is stamped ClosureOffset before it.
//
// current may be stale: the zone's latest entry and exit are re-read before
// appending, so calling this twice for the same state closes at most once.
// It returns the appended closure, or nil when nothing was done.
func (e *Engine) MaybeCloseZone(
	ctx context.Context,
	l store.Ledger,
	dni string,
	target model.ControlPointID,
	dir model.Direction,
	current ZoneState,
	at time.Time,
) (*model.Movement, error) {
	if !needsClosure(e.Points().Gate().ID, target, dir, current) {
		return nil, nil
	}
	zone := *current.Zone

	p, err := latestPair(ctx, l, dni, zone.ID)
	if err != nil {
		return nil, err
	}
	if !p.inside() {
		return nil, nil
	}

	stamp, ok := e.closureTime(p.entry.At, at)
	if !ok {
		point, _ := e.Points().Get(target)
		st, err := e.State(ctx, l, dni)
		if err != nil {
			return nil, err
		}
		return nil, reject(RuleOutOfOrder, point, dir, st,
			"scan time leaves no room to close the "+zone.Label())
	}

	m := model.Movement{
		DNI:            dni,
		ControlPointID: zone.ID,
		Direction:      model.Exit,
		At:             stamp,
		Synthetic:      true,
		Author:         model.SystemAuthor,
		RecordedAt:     e.now().UTC(),
	}
	id, err := l.AppendMovement(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("append implicit closure of %s: %w", zone.Name, err)
	}
	m.ID = id
	return &m, nil
}

// closureTime stamps a closure strictly between the zone entry and at.
// When the offset does not fit between the two it falls back to their
// midpoint. ok is false when no millisecond lies strictly between them.
func (e *Engine) closureTime(entry, at time.Time) (time.Time, bool) {
	t := at.Add(-e.closureOffset).Truncate(time.Millisecond)
	if t.After(entry) && t.Before(at) {
		return t, true
	}
	t = entry.Add(at.Sub(entry) / 2).Truncate(time.Millisecond)
	if t.After(entry) && t.Before(at) {
		return t, true
	}
	return time.Time{}, false
}
