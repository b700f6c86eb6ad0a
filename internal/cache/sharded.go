package cache

import (
	"context"
	"hash/maphash"

	"github.com/hupe1980/tessera/internal/resource"
)

const numShards = 64

// Sharded spreads tiles over independent LRU shards by key hash so that
// parallel readers rarely share a lock.
type Sharded struct {
	shards [numShards]*LRU
	seed   maphash.Seed
}

// NewSharded creates a cache of capacity bytes split evenly over the shards.
func NewSharded(capacity int64, rc *resource.Controller) *Sharded {
	s := &Sharded{seed: maphash.MakeSeed()}
	per := max(capacity/numShards, 1)
	for i := range s.shards {
		s.shards[i] = NewLRU(per, rc)
	}
	return s
}

func (s *Sharded) shard(key Key) *LRU {
	var h maphash.Hash
	h.SetSeed(s.seed)
	_, _ = h.WriteString(key.Array)
	_ = h.WriteByte(0)
	_, _ = h.WriteString(key.Path)
	return s.shards[h.Sum64()%numShards]
}

func (s *Sharded) Get(ctx context.Context, key Key) ([]byte, bool) {
	return s.shard(key).Get(ctx, key)
}

func (s *Sharded) Add(ctx context.Context, key Key, b []byte) {
	s.shard(key).Add(ctx, key, b)
}

func (s *Sharded) Close() error {
	for _, sh := range s.shards {
		_ = sh.Close()
	}
	return nil
}

// Size returns the cached bytes over all shards.
func (s *Sharded) Size() int64 {
	var n int64
	for _, sh := range s.shards {
		n += sh.Size()
	}
	return n
}
