package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/BrandonDHaskell/garita/internal/garita/catalog"
	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
	"github.com/BrandonDHaskell/garita/internal/garita/store/memory"
)

const (
	gateID     model.ControlPointID = 1
	diningID   model.ControlPointID = 2
	chemicalID model.ControlPointID = 3
	workshopID model.ControlPointID = 4

	dni = "12345678"
)

type EngineSuite struct {
	suite.Suite
	ctx    context.Context
	store  *memory.Store
	engine *Engine
	clock  time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.clock = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	cat := catalog.MustStatic(
		model.ControlPoint{ID: gateID, Name: "Gate", Kind: model.KindGate},
		model.ControlPoint{ID: diningID, Name: "Dining Hall", Kind: model.KindInternalZone, TrackPresence: true, Priority: 1},
		model.ControlPoint{ID: chemicalID, Name: "Chemical Storage", Kind: model.KindInternalZone, TrackPresence: true, Priority: 2},
		model.ControlPoint{ID: workshopID, Name: "Workshop", Kind: model.KindInternalZone},
	)
	s.engine = New(cat, Options{Now: func() time.Time { return s.clock }})
}

func (s *EngineSuite) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func (s *EngineSuite) append(cp model.ControlPointID, d model.Direction, at time.Time) model.MovementID {
	id, err := s.store.AppendMovement(s.ctx, model.Movement{DNI: dni, ControlPointID: cp, Direction: d, At: at})
	s.Require().NoError(err)
	return id
}

// register runs the full sequence a registrar would: resolve, maybe-close,
// re-resolve, validate, append.
func (s *EngineSuite) register(cp model.ControlPointID, d model.Direction) (*model.Movement, error) {
	at := s.tick()
	var closure *model.Movement
	err := s.store.WithinTx(s.ctx, func(ctx context.Context, tx store.Tx) error {
		zone, err := s.engine.ResolveCurrentZone(ctx, tx, dni)
		if err != nil {
			return err
		}
		closure, err = s.engine.MaybeCloseZone(ctx, tx, dni, cp, d, zone, at)
		if err != nil {
			return err
		}
		if err := s.engine.Validate(ctx, tx, dni, cp, d); err != nil {
			return err
		}
		_, err = tx.AppendMovement(ctx, model.Movement{DNI: dni, ControlPointID: cp, Direction: d, At: at})
		return err
	})
	return closure, err
}

func (s *EngineSuite) zone() ZoneState {
	z, err := s.engine.ResolveCurrentZone(s.ctx, s.store, dni)
	s.Require().NoError(err)
	return z
}

func (s *EngineSuite) requireRejected(err error, rule, msg string) {
	s.Require().Error(err)
	s.Require().True(errors.Is(err, ErrValidationRejected), "expected rejection, got %v", err)
	var rej *RejectionError
	s.Require().True(errors.As(err, &rej))
	s.Equal(rule, rej.Rule)
	s.Equal(msg, rej.Message)
}

// ── Zone State Resolver ─────────────────────────────────────────────────────

func (s *EngineSuite) TestResolveNoMovements() {
	s.False(s.zone().Inside())
}

func (s *EngineSuite) TestResolvePicksByPriorityWhenLedgerShowsTwoZones() {
	s.append(gateID, model.Entry, s.tick())
	s.append(chemicalID, model.Entry, s.tick())
	s.append(diningID, model.Entry, s.tick())

	for i := 0; i < 3; i++ {
		z := s.zone()
		s.Require().True(z.Inside())
		s.Equal(diningID, z.Zone.ID)
	}

	p, err := s.engine.Presence(s.ctx, s.store, dni)
	s.Require().NoError(err)
	s.Len(p.Zones, 2)
	s.True(p.Current.In(diningID))
	s.True(p.InsidePlant)
}

func (s *EngineSuite) TestResolveEqualTimestampsMeanNotInside() {
	at := s.tick()
	s.append(diningID, model.Entry, at)
	s.append(diningID, model.Exit, at)
	s.False(s.zone().Inside())
}

func (s *EngineSuite) TestResolveIgnoresUntrackedPoints() {
	s.append(gateID, model.Entry, s.tick())
	s.append(workshopID, model.Entry, s.tick())
	s.False(s.zone().Inside())
}

// ── Implicit-Closure Engine ─────────────────────────────────────────────────

func (s *EngineSuite) TestNeedsClosureRule() {
	dining := model.ControlPoint{ID: diningID, Name: "Dining Hall", Kind: model.KindInternalZone, TrackPresence: true}
	inDining := ZoneState{Zone: &dining}

	tests := []struct {
		name   string
		target model.ControlPointID
		dir    model.Direction
		state  ZoneState
		want   bool
	}{
		{"outside any zone", gateID, model.Exit, ZoneState{}, false},
		{"gate exit", gateID, model.Exit, inDining, true},
		{"gate entry", gateID, model.Entry, inDining, false},
		{"entering another zone", chemicalID, model.Entry, inDining, true},
		{"entering untracked checkpoint", workshopID, model.Entry, inDining, true},
		{"re-entering same zone", diningID, model.Entry, inDining, false},
		{"exiting same zone", diningID, model.Exit, inDining, false},
		{"exiting another zone", chemicalID, model.Exit, inDining, false},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			s.Equal(tc.want, needsClosure(gateID, tc.target, tc.dir, tc.state))
		})
	}
}

func (s *EngineSuite) TestMaybeCloseZoneIsIdempotent() {
	s.append(gateID, model.Entry, s.tick())
	s.append(diningID, model.Entry, s.tick())
	stale := s.zone()
	at := s.tick()

	first, err := s.engine.MaybeCloseZone(s.ctx, s.store, dni, gateID, model.Exit, stale, at)
	s.Require().NoError(err)
	s.Require().NotNil(first)

	second, err := s.engine.MaybeCloseZone(s.ctx, s.store, dni, gateID, model.Exit, stale, at)
	s.Require().NoError(err)
	s.Nil(second, "second call must observe the first closure")

	s.False(s.zone().Inside())
	synthetic := 0
	for _, m := range s.store.Movements() {
		if m.Synthetic {
			synthetic++
		}
	}
	s.Equal(1, synthetic)
}

func (s *EngineSuite) TestClosureIsStampedBeforeTriggerAndAfterEntry() {
	s.append(gateID, model.Entry, s.tick())
	entry := s.tick()
	s.append(diningID, model.Entry, entry)

	s.Run("offset fits", func() {
		at := entry.Add(time.Minute)
		got, ok := s.engine.closureTime(entry, at)
		s.Require().True(ok)
		s.Equal(at.Add(-time.Second), got)
	})
	s.Run("offset overshoots entry", func() {
		at := entry.Add(400 * time.Millisecond)
		got, ok := s.engine.closureTime(entry, at)
		s.Require().True(ok)
		s.True(got.After(entry))
		s.True(got.Before(at))
		s.Equal(entry.Add(200*time.Millisecond), got)
	})
	s.Run("two milliseconds apart", func() {
		got, ok := s.engine.closureTime(entry, entry.Add(2*time.Millisecond))
		s.Require().True(ok)
		s.Equal(entry.Add(time.Millisecond), got)
	})
	s.Run("no room at all", func() {
		for _, at := range []time.Time{entry, entry.Add(time.Millisecond), entry.Add(-time.Minute)} {
			_, ok := s.engine.closureTime(entry, at)
			s.False(ok, "at %s", at)
		}
	})
}

func (s *EngineSuite) TestClosureWithoutRoomIsRejected() {
	s.append(gateID, model.Entry, s.tick())
	entry := s.tick()
	s.append(diningID, model.Entry, entry)
	stale := s.zone()

	closure, err := s.engine.MaybeCloseZone(s.ctx, s.store, dni, gateID, model.Exit, stale, entry.Add(time.Millisecond))
	s.requireRejected(err, RuleOutOfOrder, "scan time leaves no room to close the dining hall")
	s.Nil(closure)
	s.Len(s.store.Movements(), 2)
	s.True(s.zone().Inside())
}

func (s *EngineSuite) TestCheckOrder() {
	s.Require().NoError(s.engine.CheckOrder(s.ctx, s.store, dni, gateID, model.Entry, s.clock))

	last := s.tick()
	s.append(gateID, model.Entry, last)

	for name, at := range map[string]time.Time{
		"same instant": last,
		"an hour back": last.Add(-time.Hour),
	} {
		s.Run(name, func() {
			err := s.engine.CheckOrder(s.ctx, s.store, dni, gateID, model.Exit, at)
			s.requireRejected(err, RuleOutOfOrder, "scan time is not after the last recorded movement")
		})
	}
	s.NoError(s.engine.CheckOrder(s.ctx, s.store, dni, gateID, model.Exit, last.Add(time.Millisecond)))
}

func (s *EngineSuite) TestClosureWhenEnteringAnotherZone() {
	s.append(gateID, model.Entry, s.tick())
	s.append(diningID, model.Entry, s.tick())

	closure, err := s.register(chemicalID, model.Entry)
	s.Require().NoError(err)
	s.Require().NotNil(closure)
	s.Equal(diningID, closure.ControlPointID)
	s.Equal(model.SystemAuthor, closure.Author)

	z := s.zone()
	s.Require().True(z.Inside())
	s.Equal(chemicalID, z.Zone.ID)
}

// ── Movement Validators ─────────────────────────────────────────────────────

func (s *EngineSuite) TestGateRoundTrip() {
	_, err := s.register(gateID, model.Entry)
	s.Require().NoError(err)
	s.Require().NoError(s.engine.Validate(s.ctx, s.store, dni, gateID, model.Exit))

	_, err = s.register(gateID, model.Exit)
	s.Require().NoError(err)
	s.False(s.zone().Inside())

	inside, err := s.engine.InsidePlant(s.ctx, s.store, dni)
	s.Require().NoError(err)
	s.False(inside)
}

func (s *EngineSuite) TestGateExitWhileInZoneIsRejectedWithoutClosure() {
	s.append(gateID, model.Entry, s.tick())
	s.append(diningID, model.Entry, s.tick())

	err := s.engine.Validate(s.ctx, s.store, dni, gateID, model.Exit)
	s.requireRejected(err, RuleGateStillInZone, "still inside the dining hall")

	var rej *RejectionError
	s.Require().True(errors.As(err, &rej))
	s.True(rej.State.InsidePlant)
	s.Require().NotNil(rej.State.Zone)
	s.Equal(diningID, rej.State.Zone.ID)
}

func (s *EngineSuite) TestGateExitWithoutEntry() {
	_, err := s.register(gateID, model.Exit)
	s.requireRejected(err, RuleGateNotInside, "not inside the plant")
	s.Empty(s.store.Movements())
}

func (s *EngineSuite) TestZoneRules() {
	s.Run("exit never entered", func() {
		err := s.engine.Validate(s.ctx, s.store, dni, chemicalID, model.Exit)
		s.requireRejected(err, RuleZoneNeverEntered, "never entered the chemical storage")
	})

	s.append(gateID, model.Entry, s.tick())
	s.append(chemicalID, model.Entry, s.tick())

	s.Run("duplicate entry", func() {
		err := s.engine.Validate(s.ctx, s.store, dni, chemicalID, model.Entry)
		s.requireRejected(err, RuleZoneDuplicateEntry, "already inside the chemical storage")
	})

	s.append(chemicalID, model.Exit, s.tick())

	s.Run("duplicate exit", func() {
		err := s.engine.Validate(s.ctx, s.store, dni, chemicalID, model.Exit)
		s.requireRejected(err, RuleZoneAlreadyExited, "already exited the chemical storage")
	})

	s.Run("re-entry after exit", func() {
		s.NoError(s.engine.Validate(s.ctx, s.store, dni, chemicalID, model.Entry))
	})
}

func (s *EngineSuite) TestZoneExitTieIsNotSuperseded() {
	at := s.tick()
	s.append(diningID, model.Entry, at)
	s.append(diningID, model.Exit, at)
	s.NoError(s.engine.Validate(s.ctx, s.store, dni, diningID, model.Exit))
}

func (s *EngineSuite) TestUntrackedPointsAutoAccept() {
	s.NoError(s.engine.Validate(s.ctx, s.store, dni, workshopID, model.Exit))
	s.NoError(s.engine.Validate(s.ctx, s.store, dni, 99, model.Entry))
}

func (s *EngineSuite) TestValidatorTable() {
	table := NewValidatorTable(s.engine.Points())
	s.Len(table, 3)
	s.Equal(GateValidator, table[gateID].Kind)
	s.Equal(ZoneValidator, table[diningID].Kind)
	s.Equal(gateID, table[chemicalID].Gate.ID)
	_, ok := table[workshopID]
	s.False(ok)
}

// ── Scenarios ───────────────────────────────────────────────────────────────

func (s *EngineSuite) TestScenarioA_ImplicitClosureOnGateExit() {
	_, err := s.register(gateID, model.Entry)
	s.Require().NoError(err)
	_, err = s.register(diningID, model.Entry)
	s.Require().NoError(err)

	closure, err := s.register(gateID, model.Exit)
	s.Require().NoError(err)
	s.Require().NotNil(closure)
	s.Equal(diningID, closure.ControlPointID)
	s.Equal(model.Exit, closure.Direction)
	s.True(closure.Synthetic)
	s.Equal(s.clock.Add(-time.Second), closure.At)

	all := s.store.Movements()
	s.Require().Len(all, 4)
	s.Equal(gateID, all[3].ControlPointID)
	s.Equal(model.Exit, all[3].Direction)
	s.True(all[2].At.Before(all[3].At))
	s.False(s.zone().Inside())
}

func (s *EngineSuite) TestScenarioB_DuplicateGateEntry() {
	_, err := s.register(gateID, model.Entry)
	s.Require().NoError(err)
	_, err = s.register(gateID, model.Entry)
	s.requireRejected(err, RuleGateDuplicateEntry, "already inside the plant")
	s.Len(s.store.Movements(), 1)
}

func (s *EngineSuite) TestScenarioC_ZoneEntryWithoutGateEntry() {
	_, err := s.register(diningID, model.Entry)
	s.requireRejected(err, RuleZoneOutsidePlant, "must enter the plant before the dining hall")
}

func (s *EngineSuite) TestRejectionRollsBackClosure() {
	s.append(gateID, model.Entry, s.tick())
	s.append(diningID, model.Entry, s.tick())
	// Entering the chemical store triggers a closure; a forced failure after
	// it must leave no synthetic exit behind.
	boom := errors.New("boom")
	err := s.store.WithinTx(s.ctx, func(ctx context.Context, tx store.Tx) error {
		zone, err := s.engine.ResolveCurrentZone(ctx, tx, dni)
		if err != nil {
			return err
		}
		if _, err := s.engine.MaybeCloseZone(ctx, tx, dni, chemicalID, model.Entry, zone, s.tick()); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)
	s.True(s.zone().In(diningID))
}
