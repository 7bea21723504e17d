package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BrandonDHaskell/garita/internal/garita/engine"
	"github.com/BrandonDHaskell/garita/internal/garita/events"
	"github.com/BrandonDHaskell/garita/internal/garita/metrics"
	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
)

// MovementRequest asks to record one pass of a person through a control
// point. At is the device time; the server clock is used when it is zero.
// Detail opens a detail record on the new movement, or replaces the payload
// of CloseDetailID when that is set.
type MovementRequest struct {
	DNI            string
	Name           string
	Category       model.Category
	ControlPointID model.ControlPointID
	Direction      model.Direction
	Author         string
	At             time.Time

	Detail        model.Payload
	CloseDetailID model.DetailID
}

type MovementResult struct {
	Movement model.Movement
	// Closure is the synthetic zone exit appended before Movement, if any.
	Closure *model.Movement
	// Zone and InsidePlant are the person's state after Movement.
	Zone        engine.ZoneState
	InsidePlant bool
	Detail      *model.DetailRecord
}

// Register records a movement. It closes a zone the person must already have
// left, validates the movement against the ledger and appends it, all under
// the person's lock. A *engine.RejectionError is returned when a rule fails.
func (s *Registrar) Register(ctx context.Context, req MovementRequest) (MovementResult, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "Registrar.Register", trace.WithAttributes(
		attribute.Int("garita.control_point_id", int(req.ControlPointID)),
		attribute.String("garita.direction", string(req.Direction)),
	))
	defer span.End()

	req, point, err := s.checkMovement(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveRegister(metrics.OutcomeError, time.Since(start))
		return MovementResult{}, err
	}

	var (
		res       MovementResult
		committed *model.Movement
	)
	err = s.withPerson(ctx, req.DNI, func(ctx context.Context) error {
		if s.closureMode == ClosureFailSafe {
			c, err := s.closeStaleZone(ctx, req)
			if err != nil {
				return err
			}
			committed = c
		}
		return s.inTx(ctx, "register", func(ctx context.Context, tx store.Tx) error {
			var err error
			res, err = s.register(ctx, tx, req)
			return err
		})
	})
	if committed != nil {
		res.Closure = committed
	}

	outcome := metrics.OutcomeAccepted
	var rej *engine.RejectionError
	switch {
	case err == nil:
		s.reportAccepted(ctx, req, point, res)
	case errors.As(err, &rej):
		outcome = metrics.OutcomeRejected
		s.reportRejected(ctx, req, point, rej, committed)
		span.SetAttributes(attribute.String("garita.rule", rej.Rule))
	default:
		outcome = metrics.OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "register movement failed",
			slog.String("dni", req.DNI),
			slog.String("point", point.Name),
			slog.String("direction", string(req.Direction)),
			slog.Any("error", err),
		)
	}
	span.SetAttributes(attribute.String("garita.outcome", outcome))
	s.metrics.IncMovement(point.Name, string(req.Direction), outcome)
	s.metrics.ObserveRegister(outcome, time.Since(start))

	if err != nil {
		return MovementResult{}, err
	}
	return res, nil
}

func (s *Registrar) checkMovement(req MovementRequest) (MovementRequest, model.ControlPoint, error) {
	dni, err := normalizeDNI(req.DNI)
	if err != nil {
		return req, model.ControlPoint{}, err
	}
	req.DNI = dni

	if !req.Direction.Valid() {
		return req, model.ControlPoint{}, fmt.Errorf("%w: %q", ErrInvalidDirection, req.Direction)
	}
	if req.Category == "" {
		req.Category = model.CategoryWorker
	}
	if !req.Category.Valid() {
		return req, model.ControlPoint{}, fmt.Errorf("%w: %q", ErrInvalidCategory, req.Category)
	}
	point, ok := s.engine.Points().Get(req.ControlPointID)
	if !ok {
		return req, model.ControlPoint{}, fmt.Errorf("%w: %d", ErrUnknownControlPoint, req.ControlPointID)
	}
	if req.CloseDetailID != 0 && req.Detail == nil {
		return req, model.ControlPoint{}, fmt.Errorf("%w: closing detail %d needs a payload", engine.ErrInvalidPayload, req.CloseDetailID)
	}

	if req.At.IsZero() {
		req.At = s.engine.Now()
	} else {
		req.At = req.At.UTC().Truncate(time.Millisecond)
	}
	return req, point, nil
}

// register is the transactional body of Register.
func (s *Registrar) register(ctx context.Context, tx store.Tx, req MovementRequest) (MovementResult, error) {
	var res MovementResult

	if _, err := tx.EnsurePerson(ctx, model.Person{
		DNI:      req.DNI,
		Name:     req.Name,
		Category: req.Category,
	}); err != nil {
		return res, fmt.Errorf("ensure person: %w", err)
	}
	if err := s.engine.CheckOrder(ctx, tx, req.DNI, req.ControlPointID, req.Direction, req.At); err != nil {
		return res, err
	}
	if req.CloseDetailID != 0 {
		if err := s.checkOwner(ctx, tx, req.DNI, req.CloseDetailID); err != nil {
			return res, err
		}
	}

	if s.closureMode == ClosureAtomic {
		current, err := s.engine.ResolveCurrentZone(ctx, tx, req.DNI)
		if err != nil {
			return res, err
		}
		res.Closure, err = s.engine.MaybeCloseZone(ctx, tx, req.DNI, req.ControlPointID, req.Direction, current, req.At)
		if err != nil {
			return res, err
		}
	}

	if err := s.engine.Validate(ctx, tx, req.DNI, req.ControlPointID, req.Direction); err != nil {
		return res, err
	}

	m := model.Movement{
		DNI:            req.DNI,
		ControlPointID: req.ControlPointID,
		Direction:      req.Direction,
		At:             req.At,
		Author:         req.Author,
		RecordedAt:     s.engine.Now(),
	}
	id, err := tx.AppendMovement(ctx, m)
	if err != nil {
		return res, fmt.Errorf("append movement: %w", err)
	}
	m.ID = id
	res.Movement = m

	switch {
	case req.CloseDetailID != 0:
		rec, err := s.engine.UpdateDetail(ctx, tx, req.CloseDetailID, req.Detail.Kind(), req.Detail, req.Author)
		if err != nil {
			return res, err
		}
		res.Detail = &rec
	case req.Detail != nil:
		rec, err := s.engine.OpenDetail(ctx, tx, id, req.Detail, req.Author)
		if err != nil {
			return res, err
		}
		res.Detail = &rec
	}

	st, err := s.engine.State(ctx, tx, req.DNI)
	if err != nil {
		return res, err
	}
	res.InsidePlant = st.InsidePlant
	res.Zone = engine.ZoneState{Zone: st.Zone}
	return res, nil
}

// closeStaleZone commits an implicit closure in its own transaction.
func (s *Registrar) closeStaleZone(ctx context.Context, req MovementRequest) (*model.Movement, error) {
	var closure *model.Movement
	err := s.inTx(ctx, "implicit-closure", func(ctx context.Context, tx store.Tx) error {
		if err := s.engine.CheckOrder(ctx, tx, req.DNI, req.ControlPointID, req.Direction, req.At); err != nil {
			return err
		}
		current, err := s.engine.ResolveCurrentZone(ctx, tx, req.DNI)
		if err != nil {
			return err
		}
		closure, err = s.engine.MaybeCloseZone(ctx, tx, req.DNI, req.ControlPointID, req.Direction, current, req.At)
		return err
	})
	if err != nil {
		return nil, err
	}
	return closure, nil
}

// checkOwner refuses to close a record opened for another person.
func (s *Registrar) checkOwner(ctx context.Context, tx store.Tx, dni string, id model.DetailID) error {
	rec, err := tx.GetDetail(ctx, id)
	if err != nil {
		return fmt.Errorf("detail %d: %w", id, err)
	}
	if rec.DNI != dni {
		return fmt.Errorf("%w: detail %d", engine.ErrNotOwner, id)
	}
	return nil
}

func (s *Registrar) reportAccepted(ctx context.Context, req MovementRequest, point model.ControlPoint, res MovementResult) {
	var evs []events.Event
	if res.Closure != nil {
		evs = append(evs, s.closureEvent(res.Closure))
	}

	e := events.New(events.MovementRecorded, req.DNI, res.Movement.At)
	e.ControlPointID = int(point.ID)
	e.Direction = string(req.Direction)
	e.MovementID = int64(res.Movement.ID)
	e.Author = req.Author
	evs = append(evs, e)

	if res.Detail != nil {
		action := "open"
		t := events.DetailOpened
		if req.CloseDetailID != 0 {
			action = "update"
			t = events.DetailUpdated
		}
		evs = append(evs, detailEvent(t, *res.Detail))
		s.metrics.IncDetail(string(res.Detail.Kind), detailAction(action, *res.Detail))
	}

	s.logger.InfoContext(ctx, "movement recorded",
		slog.String("dni", req.DNI),
		slog.String("point", point.Name),
		slog.String("direction", string(req.Direction)),
		slog.Int64("movement_id", int64(res.Movement.ID)),
		slog.Bool("implicit_closure", res.Closure != nil),
	)
	s.publish(ctx, evs...)
}

func (s *Registrar) reportRejected(ctx context.Context, req MovementRequest, point model.ControlPoint, rej *engine.RejectionError, committed *model.Movement) {
	var evs []events.Event
	if committed != nil {
		evs = append(evs, s.closureEvent(committed))
	}

	e := events.New(events.MovementRejected, req.DNI, req.At)
	e.ControlPointID = int(point.ID)
	e.Direction = string(req.Direction)
	e.Rule = rej.Rule
	e.Reason = rej.Message
	e.State = rej.State.String()
	e.Author = req.Author
	evs = append(evs, e)

	s.logger.InfoContext(ctx, "movement rejected",
		slog.String("dni", req.DNI),
		slog.String("point", point.Name),
		slog.String("direction", string(req.Direction)),
		slog.String("rule", rej.Rule),
		slog.String("state", rej.State.String()),
	)
	s.publish(ctx, evs...)
}

func (s *Registrar) closureEvent(c *model.Movement) events.Event {
	zone := strconv.Itoa(int(c.ControlPointID))
	if p, ok := s.engine.Points().Get(c.ControlPointID); ok {
		zone = p.Name
	}
	s.metrics.IncImplicitClosure(zone)

	e := events.New(events.ZoneClosed, c.DNI, c.At)
	e.ControlPointID = int(c.ControlPointID)
	e.Direction = string(c.Direction)
	e.MovementID = int64(c.ID)
	e.Synthetic = true
	e.Author = c.Author
	return e
}

func detailEvent(t events.Type, rec model.DetailRecord) events.Event {
	open := rec.IsOpen()
	e := events.New(t, rec.DNI, rec.UpdatedAt)
	e.MovementID = int64(rec.MovementID)
	e.DetailID = int64(rec.ID)
	e.Kind = string(rec.Kind)
	e.Open = &open
	e.Author = rec.UpdatedBy
	return e
}

// detailAction reports an update that closed the record as "close".
func detailAction(action string, rec model.DetailRecord) string {
	if action == "update" && !rec.IsOpen() {
		return "close"
	}
	return action
}
