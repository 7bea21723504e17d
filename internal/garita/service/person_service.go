package service

import (
	"context"
	"strings"

	"github.com/BrandonDHaskell/garita/internal/garita/engine"
	"github.com/BrandonDHaskell/garita/internal/garita/model"
)

// DefaultHistoryLimit bounds History when the caller passes no limit.
const DefaultHistoryLimit = 50

// ZoneReport is a person's presence as seen from the ledger.
type ZoneReport struct {
	DNI      string
	Presence engine.Presence
}

// ResolveZone reports where the person currently is. It never writes.
func (s *Registrar) ResolveZone(ctx context.Context, dni string) (ZoneReport, error) {
	dni, err := normalizeDNI(dni)
	if err != nil {
		return ZoneReport{}, err
	}
	p, err := s.engine.Presence(ctx, s.store, dni)
	if err != nil {
		return ZoneReport{}, err
	}
	return ZoneReport{DNI: dni, Presence: p}, nil
}

// History returns the person's most recent movements, newest first.
func (s *Registrar) History(ctx context.Context, dni string, limit int) ([]model.Movement, error) {
	dni, err := normalizeDNI(dni)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.store.ListMovements(ctx, dni, limit)
}

func (s *Registrar) GetPerson(ctx context.Context, dni string) (model.Person, error) {
	dni, err := normalizeDNI(dni)
	if err != nil {
		return model.Person{}, err
	}
	return s.store.GetPerson(ctx, dni)
}

// RenamePerson corrects a person's display name. Movements are unaffected.
func (s *Registrar) RenamePerson(ctx context.Context, dni, name string) error {
	dni, err := normalizeDNI(dni)
	if err != nil {
		return err
	}
	return s.store.RenamePerson(ctx, dni, strings.TrimSpace(name), s.engine.Now())
}

// ControlPoints lists the catalog in effect, ordered by id.
func (s *Registrar) ControlPoints() []model.ControlPoint {
	return s.engine.Points().All()
}

// RefreshControlPoints reloads the catalog from its source.
func (s *Registrar) RefreshControlPoints(ctx context.Context) ([]model.ControlPoint, error) {
	snap, err := s.engine.RefreshPoints(ctx)
	if err != nil {
		return nil, err
	}
	return snap.All(), nil
}
