package model

import (
	"fmt"
	"strings"
)

type ControlPointID int

type PointKind string

const (
	KindGate         PointKind = "gate"
	KindInternalZone PointKind = "internal_zone"
)

func ParsePointKind(s string) (PointKind, error) {
	switch PointKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindGate:
		return KindGate, nil
	case KindInternalZone, "zone", "internal":
		return KindInternalZone, nil
	}
	return "", fmt.Errorf("unknown control point kind %q", s)
}

// ControlPoint is a physical checkpoint where movements are scanned.
//
// Internal zones with TrackPresence take part in zone resolution and are
// guarded by a zone validator. Internal points without it are plain
// checkpoints: movements there are recorded but never validated.
type ControlPoint struct {
	ID            ControlPointID
	Name          string
	Kind          PointKind
	TrackPresence bool
	Priority      int
}

func (c ControlPoint) IsGate() bool { return c.Kind == KindGate }

func (c ControlPoint) IsTrackedZone() bool {
	return c.Kind == KindInternalZone && c.TrackPresence
}

// Label is the lower-cased name used in operator-facing messages.
func (c ControlPoint) Label() string {
	return strings.ToLower(strings.TrimSpace(c.Name))
}
