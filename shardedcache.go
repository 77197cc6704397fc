/*
Copyright 2024 MarketLens Inc

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package quotegate

import (
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/mailgun/holster/v4/setter"
)

// ShardedCache spreads keys across a fixed set of independently locked
// TTLCache shards to reduce lock contention under concurrent access. A key
// always lands on the same shard, so per-key semantics are identical to a
// single TTLCache.
type ShardedCache[T any] struct {
	shards []*TTLCache[T]
}

var _ Cache[any] = &ShardedCache[any]{}

// NewShardedCache creates a cache with `shardCount` shards, each bounded by
// `maxSizePerShard` entries. A shardCount of zero defaults to 32; a
// maxSizePerShard of zero leaves the shards unbounded.
func NewShardedCache[T any](shardCount, maxSizePerShard int) *ShardedCache[T] {
	setter.SetDefault(&shardCount, 32)

	shards := make([]*TTLCache[T], shardCount)
	for i := range shards {
		shards[i] = NewTTLCache[T](maxSizePerShard)
	}
	return &ShardedCache[T]{shards: shards}
}

// Returns the shard associated with the key.
func (c *ShardedCache[T]) shard(key string) *TTLCache[T] {
	hash := xxhash.ChecksumString64S(key, 0)
	return c.shards[hash%uint64(len(c.shards))]
}

func (c *ShardedCache[T]) Set(key string, value T, ttl time.Duration) {
	c.shard(key).Set(key, value, ttl)
}

func (c *ShardedCache[T]) Get(key string) (T, bool) {
	return c.shard(key).Get(key)
}

func (c *ShardedCache[T]) Invalidate(key string) {
	c.shard(key).Invalidate(key)
}

func (c *ShardedCache[T]) Clear() {
	for _, shard := range c.shards {
		shard.Clear()
	}
}

// Size returns the total number of entries across all shards.
func (c *ShardedCache[T]) Size() int64 {
	var size int64
	for _, shard := range c.shards {
		size += shard.Size()
	}
	return size
}
