package ports

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	dErrors "memoledger/pkg/domain-errors"
)

// Backoff spaces the replays of a transaction that lost a commit race.
type Backoff struct {
	InitialDelay time.Duration // default 2ms
	MaxDelay     time.Duration // default 100ms
	Multiplier   float64       // default 2.0
}

func (b Backoff) withDefaults() Backoff {
	if b.InitialDelay <= 0 {
		b.InitialDelay = 2 * time.Millisecond
	}
	if b.MaxDelay < b.InitialDelay {
		b.MaxDelay = max(100*time.Millisecond, b.InitialDelay)
	}
	if b.Multiplier < 1 {
		b.Multiplier = 2.0
	}
	return b
}

// Replay runs attempt until it succeeds or fails with an error retryable
// rejects. Between tries it sleeps a jittered delay that grows up to MaxDelay.
// Contention still unresolved when ctx ends is reported as CodeTimeout
// wrapping ErrTxRetriesExhausted, never as a domain conflict.
func Replay(ctx context.Context, b Backoff, logger *slog.Logger, retryable func(error) bool, attempt func() error) error {
	b = b.withDefaults()
	delay := b.InitialDelay

	for n := 1; ; n++ {
		err := attempt()
		if err == nil || !retryable(err) {
			return err
		}

		wait := delay/2 + rand.N(delay/2+1)
		if logger != nil {
			logger.DebugContext(ctx, "transaction conflict, replaying", "attempt", n, "wait", wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return dErrors.Wrap(ErrTxRetriesExhausted, dErrors.CodeTimeout, "transaction contention outlasted deadline")
		case <-timer.C:
		}
		delay = min(time.Duration(float64(delay)*b.Multiplier), b.MaxDelay)
	}
}
