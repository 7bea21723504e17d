// Package engine holds the movement-state reconciliation rules: zone
// resolution, implicit closure, per-point validation and the lifecycle of
// detail records. It reads and writes only through store interfaces and
// takes its control-point layout from a catalog.
package engine

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/garita/internal/garita/catalog"
)

const (
	DefaultClosureOffset  = time.Second
	DefaultMaxOpenPerKind = 1
)

type Options struct {
	// ClosureOffset is how far before the triggering movement a synthetic
	// zone exit is stamped. Defaults to one second.
	ClosureOffset time.Duration

	// MaxOpenPerKind caps open detail records per person and kind. Zero
	// means DefaultMaxOpenPerKind; a negative value disables the cap.
	MaxOpenPerKind int

	Now func() time.Time
}

type Engine struct {
	catalog        *catalog.Catalog
	closureOffset  time.Duration
	maxOpenPerKind int
	now            func() time.Time
}

func New(cat *catalog.Catalog, opts Options) *Engine {
	if opts.ClosureOffset <= 0 {
		opts.ClosureOffset = DefaultClosureOffset
	}
	if opts.MaxOpenPerKind == 0 {
		opts.MaxOpenPerKind = DefaultMaxOpenPerKind
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		catalog:        cat,
		closureOffset:  opts.ClosureOffset,
		maxOpenPerKind: opts.MaxOpenPerKind,
		now:            opts.Now,
	}
}

// Points returns the control-point snapshot currently in effect.
func (e *Engine) Points() *catalog.Snapshot { return e.catalog.Snapshot() }

// RefreshPoints reloads the control-point catalog.
func (e *Engine) RefreshPoints(ctx context.Context) (*catalog.Snapshot, error) {
	return e.catalog.Refresh(ctx)
}

// Now returns the engine clock truncated to the ledger's millisecond
// precision.
func (e *Engine) Now() time.Time { return e.now().UTC().Truncate(time.Millisecond) }
