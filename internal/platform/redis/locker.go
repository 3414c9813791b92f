package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a lane could not be acquired before ctx expired.
var ErrLockTimeout = errors.New("lane lock not acquired")

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the lock's expiry out only if it still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker serializes ledger lanes across processes with SET NX PX. A holder
// renews its leases every third of the TTL until it releases them, so only a
// holder that dies loses its lanes, once the TTL lapses.
type Locker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewLocker builds a Locker. ttl bounds how long a crashed holder blocks a lane.
func NewLocker(client redis.UniversalClient, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{client: client, prefix: "memoledger:lane:", ttl: ttl, retry: 10 * time.Millisecond}
}

// Lock blocks until key's lane is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	return l.LockAll(ctx, key)
}

// LockAll acquires every lane in keys, in sorted order, and renews them
// together until the returned function runs. On failure nothing stays held.
func (l *Locker) LockAll(ctx context.Context, keys ...string) (func(), error) {
	keys = slices.Compact(slices.Sorted(slices.Values(keys)))
	token := uuid.NewString()

	held := make([]string, 0, len(keys))
	for _, key := range keys {
		name := l.prefix + key
		if err := l.acquire(ctx, name, key, token); err != nil {
			l.release(held, token)
			return nil, err
		}
		held = append(held, name)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(held, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			l.release(held, token)
		})
	}, nil
}

func (l *Locker) acquire(ctx context.Context, name, key, token string) error {
	for {
		ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("acquire lane %s: %w", key, err)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, ctx.Err())
		case <-timer.C:
		}
	}
}

// renew extends the leases in names until stop is closed. A failed round is
// retried on the next tick.
func (l *Locker) renew(names []string, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := l.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			for _, name := range names {
				_ = extendScript.Run(ctx, l.client, []string{name}, token, l.ttl.Milliseconds()).Err()
			}
			cancel()
		}
	}
}

func (l *Locker) release(names []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, name := range slices.Backward(names) {
		_ = releaseScript.Run(ctx, l.client, []string{name}, token).Err()
	}
}
