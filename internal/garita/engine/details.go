package engine

import (
	"context"
	"fmt"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
)

// IsOpen reports whether rec's closing field is still absent. Closed is
// terminal: a closed record is never reopened.
func IsOpen(rec model.DetailRecord) bool { return rec.IsOpen() }

// OpenDetail attaches a new detail record to an existing movement. Single-step
// kinds are closed from the start.
func (e *Engine) OpenDetail(ctx context.Context, tx store.Tx, movementID model.MovementID, payload model.Payload, author string) (model.DetailRecord, error) {
	if payload == nil {
		return model.DetailRecord{}, fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}
	if err := payload.Validate(); err != nil {
		return model.DetailRecord{}, err
	}

	mv, err := tx.GetMovement(ctx, movementID)
	if err != nil {
		return model.DetailRecord{}, fmt.Errorf("movement %d: %w", movementID, err)
	}

	if !payload.Closed() && e.maxOpenPerKind > 0 {
		open, err := tx.ListOpenDetails(ctx, mv.DNI, payload.Kind())
		if err != nil {
			return model.DetailRecord{}, fmt.Errorf("list open %s records: %w", payload.Kind(), err)
		}
		if len(open) >= e.maxOpenPerKind {
			return model.DetailRecord{}, fmt.Errorf("%w: %s already has %d open %s record(s), latest %d",
				ErrTooManyOpen, mv.DNI, len(open), payload.Kind(), open[0].ID)
		}
	}

	now := e.Now()
	rec := model.DetailRecord{
		MovementID: movementID,
		DNI:        mv.DNI,
		CreatedAt:  now,
		CreatedBy:  author,
		UpdatedAt:  now,
		UpdatedBy:  author,
	}
	rec.SetPayload(payload)

	id, err := tx.InsertDetail(ctx, rec)
	if err != nil {
		return model.DetailRecord{}, fmt.Errorf("insert %s record: %w", payload.Kind(), err)
	}
	rec.ID = id
	return rec, nil
}

// UpdateDetail replaces the payload of an open record wholesale. The caller
// states the kind it expects; a different kind is a usage error.
func (e *Engine) UpdateDetail(ctx context.Context, tx store.Tx, id model.DetailID, expected model.RecordKind, payload model.Payload, author string) (model.DetailRecord, error) {
	if payload == nil {
		return model.DetailRecord{}, fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}

	rec, err := tx.GetDetail(ctx, id)
	if err != nil {
		return model.DetailRecord{}, fmt.Errorf("detail %d: %w", id, err)
	}
	if expected == "" {
		expected = payload.Kind()
	}
	if expected != rec.Kind || payload.Kind() != rec.Kind {
		return model.DetailRecord{}, fmt.Errorf("%w: detail %d is %s, got %s", ErrKindMismatch, id, rec.Kind, payload.Kind())
	}
	if !rec.IsOpen() {
		return model.DetailRecord{}, fmt.Errorf("%w: detail %d", ErrRecordClosed, id)
	}
	if err := payload.Validate(); err != nil {
		return model.DetailRecord{}, err
	}

	now := e.Now()
	if err := tx.ReplaceDetailPayload(ctx, id, store.PayloadUpdate{
		Payload:   payload,
		UpdatedAt: now,
		UpdatedBy: author,
	}); err != nil {
		return model.DetailRecord{}, fmt.Errorf("replace detail %d: %w", id, err)
	}

	rec.SetPayload(payload)
	rec.UpdatedAt = now
	rec.UpdatedBy = author
	return rec, nil
}
