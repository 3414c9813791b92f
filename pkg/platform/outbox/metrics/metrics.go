package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the outbox publisher.
type Metrics struct {
	PendingDepth    prometheus.Gauge
	Published       *prometheus.CounterVec
	PublishFailures prometheus.Counter
	PublishDuration prometheus.Histogram
	BatchSize       prometheus.Histogram
	Pruned          prometheus.Counter
}

// New registers the outbox metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		PendingDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "memoledger_outbox_pending",
			Help: "Ledger events committed but not yet published",
		}),
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memoledger_outbox_published_total",
			Help: "Ledger events published, by event type",
		}, []string{"event_type"}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "memoledger_outbox_publish_failures_total",
			Help: "Failed fetch or publish attempts",
		}),
		PublishDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "memoledger_outbox_publish_duration_seconds",
			Help:    "Latency of publishing a single event",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "memoledger_outbox_batch_size",
			Help:    "Entries fetched per poll",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),
		Pruned: f.NewCounter(prometheus.CounterOpts{
			Name: "memoledger_outbox_pruned_total",
			Help: "Published entries removed by retention",
		}),
	}
}

func (m *Metrics) SetPendingDepth(n int64) { m.PendingDepth.Set(float64(n)) }

func (m *Metrics) IncPublished(eventType string) { m.Published.WithLabelValues(eventType).Inc() }

func (m *Metrics) IncPublishFailures() { m.PublishFailures.Inc() }

func (m *Metrics) ObservePublishDuration(seconds float64) { m.PublishDuration.Observe(seconds) }

func (m *Metrics) ObserveBatchSize(n int) { m.BatchSize.Observe(float64(n)) }

func (m *Metrics) AddPruned(n int64) { m.Pruned.Add(float64(n)) }
