package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"memoledger/internal/authority"
	"memoledger/internal/identity"
	jwttoken "memoledger/internal/jwt_token"
	ledgerHandler "memoledger/internal/ledger/handler"
	ledgerMetrics "memoledger/internal/ledger/metrics"
	"memoledger/internal/ledger/models"
	"memoledger/internal/ledger/service"
	"memoledger/internal/platform/config"
	"memoledger/internal/platform/health"
	"memoledger/internal/platform/kafka/producer"
	"memoledger/internal/platform/logger"
	"memoledger/internal/platform/redis"
	httptransport "memoledger/internal/transport/http"
	"memoledger/pkg/platform/middleware/request"
	outboxMetrics "memoledger/pkg/platform/outbox/metrics"
	"memoledger/pkg/platform/outbox/worker"
	lanes "memoledger/pkg/platform/sync"
	"memoledger/pkg/platform/tracer"
)

const shutdownTimeout = 15 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/ledger.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	log.Info("initializing memoledger",
		"addr", cfg.Addr,
		"env", cfg.Environment,
		"storage", cfg.Storage.Backend,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	healthHandler := health.New(cfg.Environment)

	store, err := openBackend(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.close(); err != nil {
			log.Warn("closing store", "error", err)
		}
	}()
	healthHandler.RegisterCheck("ledger_store", store.check)

	var locker lanes.KeyLocker = lanes.NewLocalLocker()
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redis.New(ctx, cfg.Redis, reg)
		if err != nil {
			return err
		}
		defer redisClient.Close() //nolint:errcheck // shutdown path
		locker = redis.NewLocker(redisClient, cfg.Redis.LockTTL)
		healthHandler.RegisterCheck("redis", redisClient.Check)
		log.Info("distributed lanes enabled")
	}

	var publisher worker.Publisher = producer.NewLogPublisher(log)
	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(producer.Config{
			Brokers: cfg.Kafka.Brokers,
			Acks:    cfg.Kafka.Acks,
			Retries: 5,
		}, log)
		if err != nil {
			return err
		}
		defer p.Close()
		publisher = producer.NewGuardedPublisher(p, log)
		healthHandler.RegisterCheck("kafka", p.Check)
	}

	registry, err := identity.NewRegistry(cfg.Ledger.IdentityCacheSize)
	if err != nil {
		return err
	}
	program, err := authority.NewProgram([]byte(cfg.Ledger.ProgramSeed))
	if err != nil {
		return err
	}
	svc := service.New(store.runner, program,
		service.WithLogger(log),
		service.WithMetrics(ledgerMetrics.New(reg)),
		service.WithTracer(tracer.NewOTel()),
		service.WithLocker(locker),
		service.WithRegistry(registry),
	)
	if _, err := svc.InitializeLedger(ctx, cfg.Ledger.AdminIdentity); err != nil && !errors.Is(err, models.ErrLedgerAlreadyInitialized) {
		return err
	}

	events := worker.New(store.outbox, publisher,
		worker.WithTopic(cfg.Kafka.Topic),
		worker.WithBatchSize(cfg.Outbox.BatchSize),
		worker.WithPollInterval(cfg.Outbox.PollInterval),
		worker.WithRetention(cfg.Outbox.Retention),
		worker.WithMetrics(outboxMetrics.New(reg)),
		worker.WithLogger(log),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.TTL)
	jwtService.SetEnv(cfg.Environment)

	router := httptransport.NewRouter(httptransport.Deps{
		Ledger:     ledgerHandler.New(svc, cfg.Ledger.AdminIdentity, log),
		Health:     healthHandler,
		Callers:    jwtService,
		AdminToken: cfg.AdminToken,
		Logger:     log,
		Gatherer:   reg,
		Metrics:    request.NewMetrics(reg),
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		events.Start()
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				events.UpdateMetrics(gctx)
				if redisClient != nil {
					redisClient.RecordPoolStats()
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		return events.Stop(shutdownCtx)
	})
	return g.Wait()
}
