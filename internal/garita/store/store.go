package store

import (
	"context"
	"errors"
)

// Sentinel errors shared by every Store implementation. Services translate
// them into API responses; anything else coming out of a store is a storage
// failure.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Tx is the set of stores visible inside one transaction. Reads observe
// writes made earlier in the same transaction.
type Tx interface {
	Ledger
	DetailStore
	PersonStore
}

// Store is a Tx that can also open transactions. Calls made directly on the
// Store run in their own implicit transaction.
type Store interface {
	Tx

	// WithinTx runs fn in a transaction. It commits when fn returns nil and
	// rolls back otherwise. Implementations may return ErrConflict when a
	// concurrent writer invalidated the transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Ping(ctx context.Context) error
}
