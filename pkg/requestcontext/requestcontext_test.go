package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow_UsesPinnedTime(t *testing.T) {
	pinned := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := WithTime(context.Background(), pinned)

	assert.Equal(t, pinned, Now(ctx))
	assert.Equal(t, Now(ctx), Now(ctx))
}

func TestNow_FallsBackToWallClock(t *testing.T) {
	before := time.Now()
	got := Now(context.Background())
	assert.False(t, got.Before(before))
}

func TestValues_EmptyOutsideRequest(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, Caller(ctx))
	assert.Empty(t, ClientIP(ctx))
}

func TestValues_RoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithCaller(ctx, "alice")
	ctx = WithClientIP(ctx, "10.0.0.1")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "alice", Caller(ctx))
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
}
