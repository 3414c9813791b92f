package sync

import "context"

// KeyLocker serializes work per key. Lock blocks until the key's lane is free
// and returns the function that releases it. LockAll holds several lanes at
// once; implementations order the acquisition themselves, so callers with
// overlapping lane sets never deadlock.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
	LockAll(ctx context.Context, keys ...string) (unlock func(), err error)
}

// LocalLocker is a KeyLocker backed by a ShardedMutex. It serializes callers
// within one process only.
type LocalLocker struct {
	mu *ShardedMutex
}

// NewLocalLocker creates an in-process KeyLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{mu: NewShardedMutex()}
}

// Lock acquires the shard for key. The context is checked before blocking;
// a mutex wait itself cannot be cancelled.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock(key)
	return func() { l.mu.Unlock(key) }, nil
}

// LockAll acquires the shards for every key.
func (l *LocalLocker) LockAll(ctx context.Context, keys ...string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.mu.LockAll(keys...), nil
}
