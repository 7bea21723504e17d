// Package events publishes what happened to the ledger after a transaction
// commits. Publishing is best effort: callers log failures and carry on.
package events

//go:generate mockgen -source=events.go -destination=mocks/mocks.go -package=mocks Publisher

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	MovementRecorded Type = "movement.recorded"
	MovementRejected Type = "movement.rejected"
	ZoneClosed       Type = "zone.closed"
	DetailOpened     Type = "detail.opened"
	DetailUpdated    Type = "detail.updated"
)

// Event is the envelope written to the bus. Only fields relevant to Type
// are set. Rejections carry the rule and state of the requesting person and
// nothing about anyone else.
type Event struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	DNI            string    `json:"dni"`
	At             time.Time `json:"at"`
	ControlPointID int       `json:"control_point_id,omitempty"`
	Direction      string    `json:"direction,omitempty"`
	MovementID     int64     `json:"movement_id,omitempty"`
	Synthetic      bool      `json:"synthetic,omitempty"`
	DetailID       int64     `json:"detail_id,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	Open           *bool     `json:"open,omitempty"`
	Rule           string    `json:"rule,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	State          string    `json:"state,omitempty"`
	Author         string    `json:"author,omitempty"`
}

// New returns an event with a fresh id.
func New(t Type, dni string, at time.Time) Event {
	return Event{ID: uuid.NewString(), Type: t, DNI: dni, At: at.UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
