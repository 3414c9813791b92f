package sync

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutex_SameLaneSerializes(t *testing.T) {
	m := NewShardedMutex()
	counter := 0
	var wg sync.WaitGroup

	for range 100 {
		wg.Go(func() {
			m.Lock("user/alice")
			defer m.Unlock("user/alice")
			counter++
		})
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestShardedMutex_EmptyKey(t *testing.T) {
	m := NewShardedMutex()
	m.Lock("")
	m.Unlock("")
	assert.Equal(t, 0, shardFor(""))
}

func TestShardFor_Distribution(t *testing.T) {
	seen := make(map[int]bool)
	for i := range 256 {
		seen[shardFor(fmt.Sprintf("connection/c-%d", i))] = true
	}
	assert.Greater(t, len(seen), shardCount/2, "lane keys should spread across shards")

	assert.Equal(t, shardFor("global"), shardFor("global"))
}

// collidingKey returns a key other than key that maps to the same shard.
func collidingKey(t *testing.T, key string) string {
	t.Helper()
	for i := range 10_000 {
		candidate := fmt.Sprintf("account/%d", i)
		if candidate != key && shardFor(candidate) == shardFor(key) {
			return candidate
		}
	}
	t.Fatalf("no key collides with %q", key)
	return ""
}

func TestShardedMutex_LockAllSharedShard(t *testing.T) {
	m := NewShardedMutex()
	other := collidingKey(t, "reward")

	done := make(chan struct{})
	go func() {
		unlock := m.LockAll(other, "reward")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("LockAll deadlocked on keys sharing a shard")
	}
}

func TestShardedMutex_LockAllOverlappingSets(t *testing.T) {
	m := NewShardedMutex()
	counter := 0
	var wg sync.WaitGroup

	for i := range 200 {
		wg.Go(func() {
			// opposite argument orders must not deadlock
			keys := []string{fmt.Sprintf("account/%d", i%7), "reward"}
			if i%2 == 0 {
				keys = []string{"reward", fmt.Sprintf("account/%d", i%7)}
			}
			unlock := m.LockAll(keys...)
			defer unlock()
			counter++
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("LockAll deadlocked on overlapping lane sets")
	}
	assert.Equal(t, 200, counter)
}
