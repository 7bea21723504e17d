// Package service runs the logbook use cases: it serializes work per person,
// opens the store transaction, drives the engine and reports what happened
// once the transaction has committed.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/BrandonDHaskell/garita/internal/garita/engine"
	"github.com/BrandonDHaskell/garita/internal/garita/events"
	"github.com/BrandonDHaskell/garita/internal/garita/lock"
	"github.com/BrandonDHaskell/garita/internal/garita/metrics"
	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
)

var (
	ErrInvalidDNI          = errors.New("dni is required")
	ErrInvalidDirection    = errors.New("direction must be entry or exit")
	ErrInvalidCategory     = errors.New("unknown person category")
	ErrUnknownControlPoint = errors.New("unknown control point")
)

var tracer = otel.Tracer("garita/service")

// ClosureMode decides whether an implicit zone closure shares the fate of
// the movement that triggered it.
type ClosureMode string

const (
	// ClosureAtomic commits the closure together with the movement and
	// rolls both back when the movement is rejected.
	ClosureAtomic ClosureMode = "atomic"

	// ClosureFailSafe commits the closure on its own before validation, so a
	// rejected movement still leaves the person out of the stale zone.
	ClosureFailSafe ClosureMode = "fail_safe"
)

func ParseClosureMode(s string) (ClosureMode, error) {
	switch ClosureMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ClosureAtomic:
		return ClosureAtomic, nil
	case ClosureFailSafe, "failsafe":
		return ClosureFailSafe, nil
	}
	return "", fmt.Errorf("unknown closure mode %q", s)
}

type Options struct {
	ClosureMode ClosureMode
	Locker      lock.Locker
	Publisher   events.Publisher
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

type Registrar struct {
	store       store.Store
	engine      *engine.Engine
	locker      lock.Locker
	publisher   events.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	closureMode ClosureMode
}

func NewRegistrar(st store.Store, eng *engine.Engine, opts Options) *Registrar {
	if opts.ClosureMode == "" {
		opts.ClosureMode = ClosureAtomic
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewSharded()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Registrar{
		store:       st,
		engine:      eng,
		locker:      opts.Locker,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		closureMode: opts.ClosureMode,
	}
}

// Ping reports whether the backing store is reachable.
func (s *Registrar) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// withPerson holds the person's lock while fn runs.
func (s *Registrar) withPerson(ctx context.Context, dni string, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, dni)
	if err != nil {
		return fmt.Errorf("lock %s: %w", dni, err)
	}
	defer unlock()
	return fn(ctx)
}

// inTx runs fn in a store transaction and retries it once when the store
// reports a conflicting writer.
func (s *Registrar) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx) error) error {
	err := s.store.WithinTx(ctx, fn)
	if !errors.Is(err, store.ErrConflict) {
		return err
	}
	s.logger.WarnContext(ctx, "transaction conflict, retrying", slog.String("op", op), slog.Any("error", err))
	return s.store.WithinTx(ctx, fn)
}

// publish sends events after commit. Failures are logged only.
func (s *Registrar) publish(ctx context.Context, evs ...events.Event) {
	for _, e := range evs {
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.ErrorContext(ctx, "publish event failed",
				slog.String("type", string(e.Type)),
				slog.String("dni", e.DNI),
				slog.Any("error", err),
			)
		}
	}
}

func normalizeDNI(dni string) (string, error) {
	dni = model.NormalizeDNI(dni)
	if dni == "" {
		return "", ErrInvalidDNI
	}
	return dni, nil
}
