package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rentflow/payments/internal/application/services"
	"github.com/rentflow/payments/internal/config"
	"github.com/rentflow/payments/internal/infrastructure/gateway"
	"github.com/rentflow/payments/internal/infrastructure/kafka"
	"github.com/rentflow/payments/internal/infrastructure/ledger"
	"github.com/rentflow/payments/internal/infrastructure/persistence"
	"github.com/rentflow/payments/internal/infrastructure/persistence/postgres"
	"github.com/rentflow/payments/internal/metrics"
	"github.com/rentflow/payments/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payment orchestrator",
		"env", cfg.Primary.Env,
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := persistence.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	paymentRepo := postgres.NewPaymentRepository(db.Pool)
	scheduleRepo := postgres.NewScheduleRepository(db.Pool)

	settlementClient := gateway.NewSettlementClient(cfg.Gateway)
	retryClient := gateway.NewRetrySettlementClient(settlementClient, cfg.Retry)
	ledgerClient := ledger.NewLedgerClient(cfg.Ledger)

	publisher, err := kafka.NewPublisher(cfg.Kafka, logger)
	if err != nil {
		logger.Error("failed to create kafka publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	paymentService := services.NewPaymentService(
		paymentRepo, retryClient, ledgerClient, publisher, m, logger)
	scheduleService := services.NewScheduleService(
		scheduleRepo, paymentService, publisher, m, logger)

	paymentWorker := worker.NewPaymentWorker(
		paymentService,
		cfg.Worker.SweepInterval,
		cfg.Worker.BatchSize,
		logger,
	)
	scheduleWorker := worker.NewScheduleWorker(
		scheduleService,
		cfg.Worker.ScheduleInterval,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go paymentWorker.Start(workerCtx)
	go scheduleWorker.Start(workerCtx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("operational server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("orchestrator exited")
}
