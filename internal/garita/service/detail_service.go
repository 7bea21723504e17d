package service

import (
	"context"
	"fmt"

	"github.com/BrandonDHaskell/garita/internal/garita/events"
	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
)

// OpenDetail attaches a detail record to an already recorded movement.
func (s *Registrar) OpenDetail(ctx context.Context, movementID model.MovementID, payload model.Payload, author string) (model.DetailRecord, error) {
	ctx, span := tracer.Start(ctx, "Registrar.OpenDetail")
	defer span.End()

	mv, err := s.store.GetMovement(ctx, movementID)
	if err != nil {
		return model.DetailRecord{}, fmt.Errorf("movement %d: %w", movementID, err)
	}

	var rec model.DetailRecord
	err = s.withPerson(ctx, mv.DNI, func(ctx context.Context) error {
		return s.inTx(ctx, "open-detail", func(ctx context.Context, tx store.Tx) error {
			var err error
			rec, err = s.engine.OpenDetail(ctx, tx, movementID, payload, author)
			return err
		})
	})
	if err != nil {
		return model.DetailRecord{}, err
	}

	s.metrics.IncDetail(string(rec.Kind), "open")
	s.publish(ctx, detailEvent(events.DetailOpened, rec))
	return rec, nil
}

// UpdateDetail replaces the payload of an open record. expected is the kind
// the caller believes the record has; empty means the payload's kind.
func (s *Registrar) UpdateDetail(ctx context.Context, id model.DetailID, expected model.RecordKind, payload model.Payload, author string) (model.DetailRecord, error) {
	ctx, span := tracer.Start(ctx, "Registrar.UpdateDetail")
	defer span.End()

	cur, err := s.store.GetDetail(ctx, id)
	if err != nil {
		return model.DetailRecord{}, fmt.Errorf("detail %d: %w", id, err)
	}

	var rec model.DetailRecord
	err = s.withPerson(ctx, cur.DNI, func(ctx context.Context) error {
		return s.inTx(ctx, "update-detail", func(ctx context.Context, tx store.Tx) error {
			var err error
			rec, err = s.engine.UpdateDetail(ctx, tx, id, expected, payload, author)
			return err
		})
	})
	if err != nil {
		return model.DetailRecord{}, err
	}

	s.metrics.IncDetail(string(rec.Kind), detailAction("update", rec))
	s.publish(ctx, detailEvent(events.DetailUpdated, rec))
	return rec, nil
}

func (s *Registrar) GetDetail(ctx context.Context, id model.DetailID) (model.DetailRecord, error) {
	return s.store.GetDetail(ctx, id)
}

// ListOpenDetails returns the person's open records, newest first. An empty
// kind lists every kind.
func (s *Registrar) ListOpenDetails(ctx context.Context, dni string, kind model.RecordKind) ([]model.DetailRecord, error) {
	dni, err := normalizeDNI(dni)
	if err != nil {
		return nil, err
	}
	return s.store.ListOpenDetails(ctx, dni, kind)
}
