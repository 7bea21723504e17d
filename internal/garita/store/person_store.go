package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
)

type PersonStore interface {
	// EnsurePerson returns the stored person, creating it from p on first
	// reference. An existing person is returned unchanged.
	EnsurePerson(ctx context.Context, p model.Person) (model.Person, error)
	GetPerson(ctx context.Context, dni string) (model.Person, error)
	RenamePerson(ctx context.Context, dni, name string, at time.Time) error
}
