// Package lock serializes work per key (a person's DNI) so that two
// registrations for the same person never interleave their ledger reads and
// appends. Different keys never block each other beyond shard collisions.
package lock

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

type Locker interface {
	// Lock blocks until key is held or ctx is done.
	Lock(ctx context.Context, key string) (Unlock, error)
}
