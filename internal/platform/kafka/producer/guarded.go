package producer

import (
	"context"
	"log/slog"

	"memoledger/pkg/platform/circuit"
	"memoledger/pkg/platform/outbox/worker"
)

// GuardedPublisher stops calling a failing broker until a probe succeeds.
// Rejected publishes leave entries pending in the outbox.
type GuardedPublisher struct {
	next    worker.Publisher
	breaker *circuit.Breaker
}

// NewGuardedPublisher wraps next with breaker, logging every transition.
func NewGuardedPublisher(next worker.Publisher, logger *slog.Logger, opts ...circuit.Option) *GuardedPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, circuit.OnStateChange(func(name string, to circuit.State) {
		logger.Warn("publisher circuit changed state", "circuit", name, "state", to.String())
	}))
	return &GuardedPublisher{next: next, breaker: circuit.New("kafka", opts...)}
}

// Publish forwards msg unless the circuit is open.
func (g *GuardedPublisher) Publish(ctx context.Context, msg *worker.Message) error {
	return g.breaker.Do(func() error {
		return g.next.Publish(ctx, msg)
	})
}

// State reports the circuit state.
func (g *GuardedPublisher) State() circuit.State {
	return g.breaker.State()
}
