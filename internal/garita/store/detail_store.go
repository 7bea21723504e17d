package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
)

// PayloadUpdate replaces a detail record's payload wholesale.
type PayloadUpdate struct {
	Payload   model.Payload
	UpdatedAt time.Time
	UpdatedBy string
}

type DetailStore interface {
	InsertDetail(ctx context.Context, rec model.DetailRecord) (model.DetailID, error)
	GetDetail(ctx context.Context, id model.DetailID) (model.DetailRecord, error)
	ReplaceDetailPayload(ctx context.Context, id model.DetailID, upd PayloadUpdate) error
	// ListOpenDetails returns open records of a person, newest first. An
	// empty kind matches every kind.
	ListOpenDetails(ctx context.Context, dni string, kind model.RecordKind) ([]model.DetailRecord, error)
}
