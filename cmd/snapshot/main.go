// Package main provides the snapshot worker entry point.
// The worker captures one portfolio history row per user per day.
package main

import (
	"context"
	"crypto/subtle"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Matej398/crypto-folio/internal/config"
	"github.com/Matej398/crypto-folio/internal/logging"
	"github.com/Matej398/crypto-folio/internal/pricefeed"
	"github.com/Matej398/crypto-folio/internal/sentiment"
	"github.com/Matej398/crypto-folio/internal/service"
	"github.com/Matej398/crypto-folio/internal/storage"
)

// cronTokenValid reports whether the supplied token matches the configured
// one. An empty configured token disables the gate.
func cronTokenValid(configured, supplied string) bool {
	if configured == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(configured)) == 1
}

func main() {
	var (
		once  = flag.Bool("once", false, "Run a single snapshot immediately and exit")
		token = flag.String("token", "", "Cron token; must match SNAPSHOT_CRON_TOKEN when set")
	)
	flag.Parse()

	fmt.Println("Portfolio Snapshot Worker")
	log.Println("Worker starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)
	logger := logging.GetGlobalLogger()

	// A configured cron token gates every invocation, before any data access
	if !cronTokenValid(cfg.Snapshot.CronToken, *token) {
		logger.Fatal("Invalid cron token")
	}

	// Connect to databases
	logger.Info("Connecting to Postgres...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	logger.Info("Database connection established")

	// Initialize repositories and clients
	portfolioRepo := storage.NewPortfolioRepository(postgres)
	historyRepo := storage.NewHistoryRepository(postgres)
	feedClient := pricefeed.NewClient(&cfg.PriceFeed)
	sentimentClient := sentiment.NewClient(&cfg.Sentiment)

	timezone, err := time.LoadLocation(cfg.Snapshot.Timezone)
	if err != nil {
		logger.WithError(err).WithField("timezone", cfg.Snapshot.Timezone).Warn("Invalid timezone, using UTC")
		timezone = time.UTC
	}

	snapshotService := service.NewSnapshotService(portfolioRepo, historyRepo, feedClient, sentimentClient, timezone, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if *once {
		result, err := snapshotService.Run(ctx)
		if err != nil {
			logger.WithError(err).Fatal("Snapshot run failed")
		}
		logger.WithFields(map[string]interface{}{
			"date":      result.Date,
			"succeeded": result.Succeeded,
			"skipped":   result.Skipped,
			"failed":    result.Failed,
		}).Info("Snapshot run finished")
		return
	}

	logger.WithField("timezone", timezone.String()).Info("Snapshot scheduler running")
	if err := snapshotService.Schedule(ctx); err != nil && err != context.Canceled {
		logger.WithError(err).Fatal("Snapshot scheduler failed")
	}

	logger.Info("Worker stopped")
}
