package store

import (
	"context"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
)

// LatestQuery selects the most recent movement of a person, optionally
// narrowed to one control point and/or direction. Ties on timestamp are
// broken by the higher movement id.
type LatestQuery struct {
	DNI            string
	ControlPointID *model.ControlPointID
	Direction      *model.Direction
}

func Latest(dni string) LatestQuery { return LatestQuery{DNI: dni} }

func (q LatestQuery) At(cp model.ControlPointID) LatestQuery {
	q.ControlPointID = &cp
	return q
}

func (q LatestQuery) Going(d model.Direction) LatestQuery {
	q.Direction = &d
	return q
}

// Matches reports whether m satisfies the query filters.
func (q LatestQuery) Matches(m model.Movement) bool {
	if m.DNI != q.DNI {
		return false
	}
	if q.ControlPointID != nil && m.ControlPointID != *q.ControlPointID {
		return false
	}
	if q.Direction != nil && m.Direction != *q.Direction {
		return false
	}
	return true
}

// Ledger is the append-only movement log.
type Ledger interface {
	AppendMovement(ctx context.Context, m model.Movement) (model.MovementID, error)
	// LatestMovement returns nil, nil when nothing matches.
	LatestMovement(ctx context.Context, q LatestQuery) (*model.Movement, error)
	GetMovement(ctx context.Context, id model.MovementID) (model.Movement, error)
	// ListMovements returns the person's movements newest first.
	ListMovements(ctx context.Context, dni string, limit int) ([]model.Movement, error)
}

// Newer reports whether a should replace b as "latest": later timestamp
// first, then higher id.
func Newer(a, b model.Movement) bool {
	if !a.At.Equal(b.At) {
		return a.At.After(b.At)
	}
	return a.ID > b.ID
}
