package engine

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/garita/internal/garita/catalog"
	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
)

type ValidatorKind int

const (
	GateValidator ValidatorKind = iota + 1
	ZoneValidator
)

func (k ValidatorKind) String() string {
	switch k {
	case GateValidator:
		return "gate"
	case ZoneValidator:
		return "zone"
	}
	return "none"
}

// Validator is the rule set guarding one control point. Point is the
// guarded point; Gate is the plant gate the zone rules cross-check.
type Validator struct {
	Kind  ValidatorKind
	Point model.ControlPoint
	Gate  model.ControlPoint
}

// ValidatorTable maps control points to their validator. Points without an
// entry are accepted unvalidated.
type ValidatorTable map[model.ControlPointID]Validator

func NewValidatorTable(points *catalog.Snapshot) ValidatorTable {
	gate := points.Gate()
	t := ValidatorTable{gate.ID: {Kind: GateValidator, Point: gate, Gate: gate}}
	for _, z := range points.TrackedZones() {
		t[z.ID] = Validator{Kind: ZoneValidator, Point: z, Gate: gate}
	}
	return t
}

// Validate checks a proposed movement against the current ledger state. It
// returns a *RejectionError when a rule fails and nil when the movement is
// acceptable or the point has no validator.
func (e *Engine) Validate(ctx context.Context, l store.Ledger, dni string, target model.ControlPointID, dir model.Direction) error {
	v, ok := NewValidatorTable(e.Points())[target]
	if !ok {
		return nil
	}
	return v.Validate(ctx, e, l, dni, dir)
}

// CheckOrder rejects a movement stamped at or before the person's latest
// ledger movement. Such a movement would never become the latest one, so it
// could pass validation without changing the person's state.
func (e *Engine) CheckOrder(ctx context.Context, l store.Ledger, dni string, target model.ControlPointID, dir model.Direction, at time.Time) error {
	latest, err := l.LatestMovement(ctx, store.Latest(dni))
	if err != nil {
		return err
	}
	if latest == nil || at.After(latest.At) {
		return nil
	}
	st, err := e.State(ctx, l, dni)
	if err != nil {
		return err
	}
	point, _ := e.Points().Get(target)
	return reject(RuleOutOfOrder, point, dir, st,
		"scan time is not after the last recorded movement")
}

func (v Validator) Validate(ctx context.Context, e *Engine, l store.Ledger, dni string, dir model.Direction) error {
	switch v.Kind {
	case GateValidator:
		return v.validateGate(ctx, e, l, dni, dir)
	case ZoneValidator:
		return v.validateZone(ctx, e, l, dni, dir)
	}
	return nil
}

func (v Validator) validateGate(ctx context.Context, e *Engine, l store.Ledger, dni string, dir model.Direction) error {
	gate, err := latestPair(ctx, l, dni, v.Point.ID)
	if err != nil {
		return err
	}
	zone, err := e.ResolveCurrentZone(ctx, l, dni)
	if err != nil {
		return err
	}
	st := State{InsidePlant: gate.inside(), Zone: zone.Zone}

	switch dir {
	case model.Entry:
		if st.InsidePlant {
			return reject(RuleGateDuplicateEntry, v.Point, dir, st, "already inside the plant")
		}
	case model.Exit:
		if !st.InsidePlant {
			return reject(RuleGateNotInside, v.Point, dir, st, "not inside the plant")
		}
		if zone.Inside() {
			return reject(RuleGateStillInZone, v.Point, dir, st, "still inside the "+zone.Zone.Label())
		}
	}
	return nil
}

func (v Validator) validateZone(ctx context.Context, e *Engine, l store.Ledger, dni string, dir model.Direction) error {
	gate, err := latestPair(ctx, l, dni, v.Gate.ID)
	if err != nil {
		return err
	}
	here, err := latestPair(ctx, l, dni, v.Point.ID)
	if err != nil {
		return err
	}
	zone, err := e.ResolveCurrentZone(ctx, l, dni)
	if err != nil {
		return err
	}
	st := State{InsidePlant: gate.inside(), Zone: zone.Zone}
	label := v.Point.Label()

	switch dir {
	case model.Entry:
		if !st.InsidePlant {
			return reject(RuleZoneOutsidePlant, v.Point, dir, st, "must enter the plant before the "+label)
		}
		if here.inside() {
			return reject(RuleZoneDuplicateEntry, v.Point, dir, st, "already inside the "+label)
		}
	case model.Exit:
		if here.entry == nil {
			return reject(RuleZoneNeverEntered, v.Point, dir, st, "never entered the "+label)
		}
		if here.exit.Supersedes(here.entry) {
			return reject(RuleZoneAlreadyExited, v.Point, dir, st, "already exited the "+label)
		}
	}
	return nil
}
