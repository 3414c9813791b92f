package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mint kinds for the TokensMinted counter.
const (
	MintInitial = "initial_grant"
	MintDaily   = "daily"
	MintLock    = "lock_reward"
	MintUnlock  = "unlock_reward"
	MintBonus   = "connection_bonus"
)

// Metrics holds Prometheus metrics for the ledger service.
type Metrics struct {
	TokensMinted       *prometheus.CounterVec
	TokensLocked       prometheus.Counter
	Rejections         *prometheus.CounterVec
	AccountsRegistered prometheus.Counter
	ConnectionsCreated prometheus.Counter
	Unlocks            *prometheus.CounterVec
	OperationLatency   *prometheus.HistogramVec
}

// New registers the ledger metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		TokensMinted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memoledger_tokens_minted_total",
			Help: "Whole tokens minted, by kind",
		}, []string{"kind"}),
		TokensLocked: f.NewCounter(prometheus.CounterOpts{
			Name: "memoledger_tokens_locked_total",
			Help: "Whole personal tokens moved into escrow",
		}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memoledger_rejections_total",
			Help: "Rejected ledger operations, by operation and error code",
		}, []string{"operation", "code"}),
		AccountsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "memoledger_accounts_registered_total",
			Help: "Accounts registered",
		}),
		ConnectionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "memoledger_connections_created_total",
			Help: "Connections created",
		}),
		Unlocks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memoledger_unlocks_total",
			Help: "Successful unlocks, by whether they completed the connection",
		}, []string{"completed"}),
		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memoledger_operation_duration_seconds",
			Help:    "Latency of ledger operations including lane wait and retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncMinted(kind string, units uint64) {
	m.TokensMinted.WithLabelValues(kind).Add(float64(units))
}

func (m *Metrics) IncLocked(units uint64) { m.TokensLocked.Add(float64(units)) }

func (m *Metrics) IncRejected(operation, code string) {
	m.Rejections.WithLabelValues(operation, code).Inc()
}

func (m *Metrics) IncRegistered() { m.AccountsRegistered.Inc() }

func (m *Metrics) IncConnectionCreated() { m.ConnectionsCreated.Inc() }

func (m *Metrics) IncUnlock(completed bool) {
	label := "false"
	if completed {
		label = "true"
	}
	m.Unlocks.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveLatency(operation string, start time.Time) {
	m.OperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
