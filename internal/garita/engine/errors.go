package engine

import (
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
)

var (
	// ErrValidationRejected matches every *RejectionError.
	ErrValidationRejected = errors.New("movement rejected")

	ErrKindMismatch   = errors.New("detail record kind mismatch")
	ErrRecordClosed   = errors.New("detail record is closed")
	ErrTooManyOpen    = errors.New("too many open detail records")
	ErrNotOwner       = errors.New("detail record belongs to another person")
	ErrInvalidPayload = model.ErrInvalidPayload
)

// Rejection rules, stable identifiers for clients and metrics.
const (
	RuleGateDuplicateEntry = "gate.duplicate_entry"
	RuleGateNotInside      = "gate.not_inside"
	RuleGateStillInZone    = "gate.still_in_zone"
	RuleZoneOutsidePlant   = "zone.outside_plant"
	RuleZoneDuplicateEntry = "zone.duplicate_entry"
	RuleZoneNeverEntered   = "zone.never_entered"
	RuleZoneAlreadyExited  = "zone.already_exited"
	RuleOutOfOrder         = "movement.out_of_order"
)

// State is the computed presence of the person a rejection is about.
type State struct {
	InsidePlant bool
	Zone        *model.ControlPoint
}

func (s State) String() string {
	switch {
	case s.Zone != nil:
		return "inside the " + s.Zone.Label()
	case s.InsidePlant:
		return "inside the plant"
	default:
		return "outside the plant"
	}
}

// RejectionError is returned when a validator declines a movement. Message is
// safe to show to the operator.
type RejectionError struct {
	Rule      string
	Message   string
	Point     model.ControlPoint
	Direction model.Direction
	State     State
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s at %s rejected (%s): %s", e.Direction, e.Point.Label(), e.Rule, e.Message)
}

func (e *RejectionError) Is(target error) bool { return target == ErrValidationRejected }

func reject(rule string, p model.ControlPoint, d model.Direction, st State, msg string) error {
	return &RejectionError{Rule: rule, Message: msg, Point: p, Direction: d, State: st}
}
