package sync

import (
	"hash/fnv"
	"slices"
	"sync"
)

const shardCount = 64

// ShardedMutex spreads lane keys across a fixed set of mutexes. Two keys that
// land on the same shard serialize with each other, which is safe but slower.
type ShardedMutex struct {
	shards [shardCount]sync.Mutex
}

// NewShardedMutex creates a ShardedMutex.
func NewShardedMutex() *ShardedMutex {
	return &ShardedMutex{}
}

// Lock acquires the shard for key.
func (m *ShardedMutex) Lock(key string) {
	m.shards[shardFor(key)].Lock()
}

// Unlock releases the shard for key.
func (m *ShardedMutex) Unlock(key string) {
	m.shards[shardFor(key)].Unlock()
}

// LockAll acquires the shards for keys and returns the release function.
// Shards are taken once each in ascending index order, so keys that share a
// shard cannot self-deadlock and overlapping callers cannot deadlock each other.
func (m *ShardedMutex) LockAll(keys ...string) func() {
	shards := make([]int, 0, len(keys))
	for _, key := range keys {
		shards = append(shards, shardFor(key))
	}
	slices.Sort(shards)
	shards = slices.Compact(shards)

	for _, i := range shards {
		m.shards[i].Lock()
	}
	return func() {
		for _, i := range slices.Backward(shards) {
			m.shards[i].Unlock()
		}
	}
}

// shardFor maps key to a shard with FNV-1a. The empty key uses shard 0.
func shardFor(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}
