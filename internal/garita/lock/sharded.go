package lock

import (
	"context"
	"hash/fnv"
	"sync"
)

const numShards = 128

// Sharded is an in-process Locker. Keys hash onto a fixed set of shards with
// FNV-1a, so unrelated keys occasionally share a shard; that only costs
// throughput, never correctness.
type Sharded struct {
	shards [numShards]chan struct{}
}

func NewSharded() *Sharded {
	s := &Sharded{}
	for i := range s.shards {
		s.shards[i] = make(chan struct{}, 1)
	}
	return s
}

func (s *Sharded) Lock(ctx context.Context, key string) (Unlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sh := s.shards[hashKey(key)%numShards]
	select {
	case sh <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-sh }) }, nil
}

func hashKey(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
