package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"welfarefund/internal/amqp"
	"welfarefund/internal/cache"
	"welfarefund/internal/config"
	"welfarefund/internal/core"
	apphttp "welfarefund/internal/http"
	applog "welfarefund/internal/log"
	"welfarefund/internal/services"
	"welfarefund/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Initialize SQLite repository (runs embedded migrations)
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Initialize AMQP client for publishing export and lifecycle messages
	// (optional: the API still serves requests if the broker is down).
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPExportQueue, cfg.AMQPLifecycleQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client - exports will rely on the worker backlog pass", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	// Staff profile cache with periodic expiry cleanup
	cacheManager := cache.NewManager()
	staffCache := cache.NewLRUCache[core.Staff](cfg.StaffCacheSize, cfg.StaffCacheTTL)
	cacheManager.Register(staffCache)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	settingsService := services.NewMemberSettingsService(repo)

	svc := apphttp.Services{
		Years:       services.NewFinancialYearService(repo),
		Charity:     services.NewFundService(repo, core.FundCharity),
		Emergency:   services.NewFundService(repo, core.FundEmergency),
		Chitfunds:   services.NewChitfundService(repo),
		Loans:       services.NewLoanService(repo),
		Events:      services.NewEventService(repo),
		Collections: services.NewCollectionService(repo, amqpClient),
		Settings:    settingsService,
		Staff:       services.NewStaffService(repo, settingsService, amqpClient, staffCache),
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background sweep marks elapsed events completed
	sweeper := services.NewEventSweeper(repo, cfg.SweepInterval)
	go sweeper.Run(ctx)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting welfarefund server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
