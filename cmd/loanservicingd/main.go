package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/usecase"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/port"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/service"
	"github.com/bibbank/bib/services/loan-servicing/internal/infrastructure/config"
	"github.com/bibbank/bib/services/loan-servicing/internal/infrastructure/kafka"
	"github.com/bibbank/bib/services/loan-servicing/internal/infrastructure/lock"
	"github.com/bibbank/bib/services/loan-servicing/internal/infrastructure/outbox"
	pgRepo "github.com/bibbank/bib/services/loan-servicing/internal/infrastructure/persistence/postgres"
	"github.com/bibbank/bib/services/loan-servicing/internal/infrastructure/productcatalog"
	grpcPresentation "github.com/bibbank/bib/services/loan-servicing/internal/presentation/grpc"
	"github.com/bibbank/bib/services/loan-servicing/internal/presentation/rest"
	"github.com/bibbank/bib/services/loan-servicing/migrations"
	pkgkafka "github.com/bibbank/bib/services/loan-servicing/pkg/kafka"
	"github.com/bibbank/bib/services/loan-servicing/pkg/observability"
	pkgpostgres "github.com/bibbank/bib/services/loan-servicing/pkg/postgres"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()

	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.Telemetry.LogLevel,
		Format:      cfg.Telemetry.LogFormat,
		ServiceName: cfg.ServiceName,
	})

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("loan-servicing exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Info("starting loan-servicing",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"lock_backend", cfg.LockBackend,
	)

	// Telemetry.
	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() { _ = shutdownTracer(context.WithoutCancel(ctx)) }() //nolint:errcheck // best-effort flush
	}

	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: cfg.ServiceName})
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer func() { _ = meterProvider.Shutdown(context.WithoutCancel(ctx)) }() //nolint:errcheck // best-effort flush

	inst, err := usecase.NewInstruments(otel.GetTracerProvider(), meterProvider)
	if err != nil {
		return fmt.Errorf("instruments: %w", err)
	}

	// Product catalog.
	catalog, err := productcatalog.Load(cfg.ProductCatalogPath)
	if err != nil {
		return fmt.Errorf("product catalog: %w", err)
	}
	logger.Info("product catalog loaded", "path", cfg.ProductCatalogPath, "products", catalog.IDs())

	// Database.
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	pgCfg := cfg.Postgres()
	pool, err := pkgpostgres.NewPool(dbCtx, pgCfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pkgpostgres.RunMigrationsFS(pgCfg.DSN(), migrations.FS, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready")

	checks := map[string]rest.Check{
		"postgres": func(ctx context.Context) error { return pkgpostgres.HealthCheck(ctx, pool) },
	}

	// Per-loan lock.
	var locker port.LoanLocker
	switch cfg.LockBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, logger, lock.WithTTL(cfg.Redis.LockTTL))
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	default:
		logger.Warn("using in-process loan locks; run a single replica")
		locker = lock.NewMemoryLocker()
	}

	// Kafka.
	kafkaCfg := cfg.KafkaClient()
	producer, err := pkgkafka.NewProducer(kafkaCfg)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer producer.Close()

	kafkaPublisher := kafka.NewEventPublisher(producer, kafka.Topics{
		Ledger:        cfg.Kafka.LedgerTopic,
		Notifications: cfg.Kafka.NotificationsTopic,
	}, logger)

	// Events are committed to the outbox with the loan; the relay publishes
	// them right after commit and retries whatever that misses.
	publisher := outbox.NewRelay(
		pgRepo.NewOutboxRepo(pool, cfg.Outbox.Settle),
		kafkaPublisher,
		logger,
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithInterval(cfg.Outbox.PollInterval),
	)

	// Use cases.
	generator := service.NewScheduleGenerator(service.NewInterestCalculator(), 0)
	loanRepo := pgRepo.NewLoanRepo(pool)

	quoteUC := usecase.NewSimulateLoanUseCase(catalog, generator, inst)
	disburseUC := usecase.NewDisburseLoanUseCase(loanRepo, catalog, publisher, generator, inst)
	repayUC := usecase.NewApplyRepaymentUseCase(loanRepo, catalog, locker, publisher, service.NewRepaymentAllocator(), inst)
	advanceUC := usecase.NewAdvanceAccountingDayUseCase(loanRepo, catalog, locker, publisher, service.NewDelinquencyClassifier(), inst)
	closeDayUC := usecase.NewCloseAccountingDayUseCase(loanRepo, advanceUC, logger)
	writeOffUC := usecase.NewWriteOffLoanUseCase(loanRepo, locker, publisher, inst)
	getLoanUC := usecase.NewGetLoanUseCase(loanRepo)

	consumer, err := pkgkafka.NewConsumer(kafkaCfg, cfg.Kafka.AccountingDayTopic,
		kafka.AccountingDayHandler(closeDayUC, logger), logger)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	defer consumer.Close()

	// gRPC server.
	handler := grpcPresentation.NewLoanServicingHandler(quoteUC, disburseUC, repayUC, advanceUC, writeOffUC, getLoanUC)
	grpcServer := grpcPresentation.NewServer(handler, logger, cfg.GRPCReflection)

	// HTTP server (health checks and metrics).
	mux := http.NewServeMux()
	rest.NewHealthHandler(cfg.ServiceName, logger, metricsHandler, checks).RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start servers, the accounting-day consumer and the outbox relay.
	errCh := make(chan error, 4)

	go func() {
		if err := grpcServer.Serve(cfg.GRPCAddr()); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		logger.Info("HTTP server starting", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("accounting day consumer: %w", err)
		}
	}()

	go func() {
		if err := publisher.Run(ctx); err != nil {
			errCh <- fmt.Errorf("outbox relay: %w", err)
		}
	}()

	// Wait for shutdown signal.
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	// Graceful shutdown.
	grpcServer.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("loan-servicing stopped")
	return runErr
}
