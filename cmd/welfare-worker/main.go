package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"welfarefund/internal/amqp"
	"welfarefund/internal/config"
	applog "welfarefund/internal/log"
	"welfarefund/internal/services"
	"welfarefund/internal/sheets"
	gsheet "welfarefund/internal/sheets/google"
	mem "welfarefund/internal/sheets/memory"
	"welfarefund/internal/storage"
	"welfarefund/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting welfare-worker")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Initialize SQLite repository to read pending collections
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Initialize the ledger writer. Google Sheets when configured,
	// otherwise an in-memory writer so exports still drain the backlog.
	var ledger sheets.LedgerWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		ledger = client
		logger.Info("Google Sheets ledger initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		ledger = mem.New()
		logger.Info("Google Sheets disabled - using in-memory ledger writer")
	}

	// Initialize AMQP client for consuming messages
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPExportQueue, cfg.AMQPLifecycleQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settingsService := services.NewMemberSettingsService(repo)
	exportWorker := worker.NewExportWorker(repo, ledger, settingsService, cfg.ExportBatchSize)

	// On startup, process any pending collections that might have been missed
	logger.Info("Performing startup export check...")
	if err := exportWorker.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup export check", "error", err)
		// Don't exit - continue with normal operation
	}

	// Consume export messages
	go func() {
		err := amqpClient.ConsumeExports(ctx, func(msg *amqp.CollectionExportMessage) error {
			return exportWorker.HandleExportMessage(ctx, msg)
		})
		if err != nil && err != context.Canceled {
			logger.Error("Export consumption failed", "error", err)
		}
		cancel()
	}()

	// Consume staff lifecycle messages to repair member settings
	go func() {
		err := amqpClient.ConsumeLifecycle(ctx, func(msg *amqp.StaffLifecycleMessage) error {
			return exportWorker.HandleLifecycleMessage(ctx, msg)
		})
		if err != nil && err != context.Canceled {
			logger.Error("Lifecycle consumption failed", "error", err)
		}
		cancel()
	}()

	// Periodic backlog pass for any missed messages
	ticker := time.NewTicker(cfg.ExportInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := exportWorker.ProcessPendingCollections(ctx); err != nil {
					logger.Error("Periodic export pass failed", "error", err)
				}
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	// Give worker time to finish current operations
	logger.Info("Shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
