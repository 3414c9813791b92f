package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)

	for range 50 {
		wg.Go(func() {
			unlock, err := l.Lock(context.Background(), "account-1")
			require.NoError(t, err)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestLocalLocker_CancelledContext(t *testing.T) {
	l := NewLocalLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	unlock, err := l.Lock(ctx, "account-1")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, unlock)

	// lane must still be free
	unlock, err = l.Lock(context.Background(), "account-1")
	require.NoError(t, err)
	unlock()
}

func TestLocalLocker_LockAllExcludesEachLane(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.LockAll(context.Background(), "account:alice", "reward")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		release, err := l.Lock(context.Background(), "reward")
		if err == nil {
			release()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("reward lane acquired while held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	<-acquired
}

func TestLocalLocker_LockAllCancelledContext(t *testing.T) {
	l := NewLocalLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	unlock, err := l.LockAll(ctx, "account:alice", "reward")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, unlock)
}
