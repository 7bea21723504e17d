package model

import "time"

type DetailID int64

// DetailRecord is the typed logbook entry attached to a ledger movement.
// EntryAt and ExitAt mirror the payload window so stores can filter on them.
type DetailRecord struct {
	ID         DetailID
	MovementID MovementID
	DNI        string
	Kind       RecordKind
	Payload    Payload
	EntryAt    *time.Time
	ExitAt     *time.Time
	CreatedAt  time.Time
	CreatedBy  string
	UpdatedAt  time.Time
	UpdatedBy  string
}

// IsOpen reports whether the record's closing field is still absent.
func (r DetailRecord) IsOpen() bool {
	if r.Payload == nil {
		return false
	}
	return !r.Payload.Closed()
}

// SetPayload replaces the payload and refreshes the mirrored window.
func (r *DetailRecord) SetPayload(p Payload) {
	r.Payload = p
	r.Kind = p.Kind()
	r.EntryAt, r.ExitAt = p.Window()
}
