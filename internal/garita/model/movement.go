package model

import (
	"fmt"
	"strings"
	"time"
)

type MovementID int64

type Direction string

const (
	Entry Direction = "entry"
	Exit  Direction = "exit"
)

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "entry", "in", "ingreso":
		return Entry, nil
	case "exit", "out", "salida":
		return Exit, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

func (d Direction) Valid() bool { return d == Entry || d == Exit }

// SystemAuthor is recorded as the author of synthetic closures.
const SystemAuthor = "system:implicit-closure"

// Movement is a single ledger event. Movements are never updated; the one
// with the latest At for a (person, point) pair decides presence there.
type Movement struct {
	ID             MovementID
	DNI            string
	ControlPointID ControlPointID
	Direction      Direction
	At             time.Time
	Synthetic      bool
	Author         string
	RecordedAt     time.Time
}

// Supersedes reports whether m is strictly newer than other. A nil other is
// always superseded; equal timestamps are not.
func (m *Movement) Supersedes(other *Movement) bool {
	if m == nil {
		return false
	}
	if other == nil {
		return true
	}
	return m.At.After(other.At)
}
