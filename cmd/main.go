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

	_ "credit-engine/docs"
	"credit-engine/internal/api"
	mw "credit-engine/internal/api/middleware"
	"credit-engine/internal/batch"
	"credit-engine/internal/config"
	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/database/postgres"
	"credit-engine/internal/infrastructure/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	importJobName          = "SpreadsheetImport"
	defaultImportSchedule  = "0 3 * * *"
	schedulerShutdownGrace = 15 * time.Second
	serverShutdownTimeout  = 20 * time.Second
)

// @title Credit Engine API
// @version 1.0
// @description Credit line registration and loan eligibility decisions.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, logger := initializeApp()

	dbPool := initializeDatabase(cfg, logger)
	defer closeDatabase(dbPool, logger)

	publisher, closePublisher := initializeEventPublisher(cfg.RabbitMQ, logger)
	defer closePublisher()

	customerRepo := postgres.NewCustomerRepository(dbPool, logger)
	loanRepo := postgres.NewLoanRepository(dbPool, logger)
	customerService := customer.NewCustomerService(customerRepo, publisher, logger)
	loanService := loan.NewLoanService(loanRepo, customerRepo, publisher, logger)

	importJob := batch.NewImportJob(
		batch.WorkbookSource{CustomerFile: cfg.Ingest.CustomerFile, LoanFile: cfg.Ingest.LoanFile},
		customerRepo, loanRepo, cfg.Ingest.Timeout, logger,
	)
	scheduler := startBatchJobs(cfg.Ingest, logger, importJob)

	rateLimiter := mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, logger)
	router := api.SetupRouter(rateLimiter, loanService, customerService, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, scheduler, shutdownChan, serverErrors, logger)
	rateLimiter.Close()
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "port", cfg.Server.Port, "ingest_enabled", cfg.Ingest.Enabled)

	return cfg, logger
}

func initializeDatabase(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	logger.Info("Initializing database connection pool...")
	dbPool, err := postgres.NewConnectionPool(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	return dbPool
}

func closeDatabase(dbPool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("Closing database connection pool...")
	dbPool.Close()
}

// initializeEventPublisher falls back to a no-op publisher when RabbitMQ is
// disabled or unreachable.
func initializeEventPublisher(cfg config.RabbitMQConfig, logger *slog.Logger) (event.EventPublisher, func()) {
	if !cfg.Enabled {
		logger.Info("RabbitMQ disabled, domain events will not be published")
		return event.NoopPublisher{}, func() {}
	}

	conn, err := connectRabbitMQ(cfg, logger)
	if err != nil {
		logger.Warn("RabbitMQ unavailable, domain events will not be published", slog.Any("error", err))
		return event.NoopPublisher{}, func() {}
	}
	closeConn := func() {
		logger.Info("Closing RabbitMQ connection...")
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			logger.Warn("Failed to close RabbitMQ connection", slog.Any("error", err))
		}
	}

	publisher, err := event.NewRabbitMQEventPublisher(event.FromConnection(conn), cfg.ExchangeName, logger)
	if err != nil {
		logger.Warn("Failed to set up RabbitMQ publisher, domain events will not be published", slog.Any("error", err))
		closeConn()
		return event.NoopPublisher{}, func() {}
	}
	return publisher, closeConn
}

func connectRabbitMQ(cfg config.RabbitMQConfig, logger *slog.Logger) (*amqp.Connection, error) {
	logger.Info("Connecting to RabbitMQ", "exchange", cfg.ExchangeName)
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	logger.Info("RabbitMQ connection established.")

	go func() {
		if closeErr := <-conn.NotifyClose(make(chan *amqp.Error, 1)); closeErr != nil {
			logger.Error("RabbitMQ connection closed unexpectedly", slog.Any("error", closeErr))
		}
	}()

	return conn, nil
}

// startBatchJobs returns a started scheduler even when ingest is disabled.
func startBatchJobs(cfg config.IngestConfig, logger *slog.Logger, job batch.Job) *batch.Scheduler {
	logger.Info("Initializing batch job scheduler...")
	scheduler := batch.NewScheduler(logger)

	if !cfg.Enabled {
		logger.Info("Spreadsheet import disabled")
		scheduler.Start()
		return scheduler
	}

	scheduleSpec := cfg.Schedule
	if scheduleSpec == "" {
		scheduleSpec = defaultImportSchedule
		logger.Warn("Import schedule not configured, using default", "schedule", scheduleSpec)
	}
	if _, err := scheduler.Schedule(importJobName, scheduleSpec, job, 0); err != nil {
		logger.Error("Spreadsheet import will not run on a schedule", slog.Any("error", err))
	}

	if cfg.RunOnStart {
		go scheduler.RunNow(context.Background(), importJobName, job, 0)
	}

	scheduler.Start()
	return scheduler
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, scheduler *batch.Scheduler, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var triggerReason string
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
		logger.Info("Shutdown signal received.", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		triggerReason = "server exited"
		logger.Info("Server goroutine finished before signal.")
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)
	scheduler.Stop(schedulerShutdownGrace)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	logger.Info("Application shutdown process complete.")
}
