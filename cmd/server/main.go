package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solvista/facturador/internal"
	"github.com/solvista/facturador/internal/handler"
	"github.com/solvista/facturador/internal/metrics"
	"github.com/solvista/facturador/internal/middleware"
	"github.com/solvista/facturador/internal/notify"
	"github.com/solvista/facturador/internal/repository"
	"github.com/solvista/facturador/internal/service"
	"github.com/solvista/facturador/internal/storage"
	"github.com/solvista/facturador/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("database ready")

	// Initialize repository
	queries := repository.New(db)

	// Initialize deliverable storage
	store, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("storage ready", "provider", cfg.StorageProvider)

	// Initialize notification sender and job enqueuer
	sender := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, logger)
	enqueuer := worker.NewEnqueuer(queries, logger)

	// Initialize services
	identityService := service.NewIdentityService(queries, logger)
	quotaService := service.NewQuotaService(queries, logger)
	planService := service.NewPlanService(queries, logger)
	invoiceService := service.NewInvoiceService(db, queries, logger)
	paymentService := service.NewPaymentService(db, queries, logger, enqueuer)
	deliverableService := service.NewDeliverableService(queries, quotaService, logger)
	delinquencyService := service.NewDelinquencyService(queries, logger, enqueuer)

	// Initialize background worker
	var jobWorker *worker.Worker
	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout

		jobWorker, err = worker.New(db, queries, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		jobWorker.Register(worker.NewPaymentReceiptHandler(queries, sender, logger))
		jobWorker.Register(worker.NewDelinquencyNoticeHandler(sender, logger))
		jobWorker.Start(ctx)
	}

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(identityService, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// Initialize handlers
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, paymentService, logger)
	planHandler := handler.NewPlanHandler(planService, quotaService, logger)
	deliverableHandler := handler.NewDeliverableHandler(deliverableService, store, logger)
	delinquencyHandler := handler.NewDelinquencyHandler(delinquencyService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics (basic auth when configured)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Local storage serves stored deliverables directly
	if cfg.StorageProvider == "local" {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	// API routes require a resolved principal
	invoiceHandler.RegisterRoutes(mux, authMw.RequirePrincipal)
	planHandler.RegisterRoutes(mux, authMw.RequirePrincipal)
	deliverableHandler.RegisterRoutes(mux, authMw.RequirePrincipal)
	delinquencyHandler.RegisterRoutes(mux, authMw.RequirePrincipal)

	// Anything unmatched gets the JSON not-found body instead of the
	// plain-text ServeMux default
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	// Outermost first: metrics, request logging, principal resolution
	root := middleware.Stack(
		metrics.Middleware,
		loggingMw.Handler,
		authMw.WithPrincipal,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("shutdown signal received, initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if jobWorker != nil {
		jobWorker.Stop()
	}

	logger.Info("graceful shutdown complete")
	return nil
}

// newStorage builds the configured deliverable storage backend.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case storage.ProviderS3:
		return storage.NewS3Storage(storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			BucketName:      cfg.S3BucketName,
			PublicURL:       cfg.S3PublicURL,
		}, logger)
	case storage.ProviderLocal:
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.StorageProvider)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
