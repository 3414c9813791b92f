package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ledgerHandler "memoledger/internal/ledger/handler"
	"memoledger/internal/platform/health"
	"memoledger/pkg/platform/middleware/admin"
	"memoledger/pkg/platform/middleware/auth"
	"memoledger/pkg/platform/middleware/request"
	"memoledger/pkg/platform/middleware/requesttime"
	"memoledger/pkg/validation"
)

const defaultRequestTimeout = 30 * time.Second

// Deps are the collaborators the router mounts.
type Deps struct {
	Ledger     *ledgerHandler.Handler
	Health     *health.Handler
	Callers    auth.CallerValidator
	AdminToken string
	Logger     *slog.Logger

	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	// Metrics records endpoint latency when set.
	Metrics *request.Metrics
	// Clock pins request time; nil uses the wall clock.
	Clock          func() time.Time
	RequestTimeout time.Duration
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(d Deps) http.Handler {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	clock := requesttime.Middleware
	if d.Clock != nil {
		clock = requesttime.MiddlewareWithClock(d.Clock)
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(request.ClientIP)
	r.Use(clock)
	r.Use(request.Logger(d.Logger))
	r.Use(request.LatencyMiddleware(d.Metrics))
	r.Use(request.Timeout(timeout))
	r.Use(request.ContentTypeJSON)
	r.Use(request.BodyLimit(validation.MaxBodySize))

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireCaller(d.Callers, d.Logger))
		d.Ledger.Register(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(d.AdminToken, d.Logger))
		d.Ledger.RegisterAdmin(r)
	})

	return r
}
