// Package main provides the API server entry point for the crypto-folio service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Matej398/crypto-folio/internal/api"
	"github.com/Matej398/crypto-folio/internal/config"
	"github.com/Matej398/crypto-folio/internal/logging"
	"github.com/Matej398/crypto-folio/internal/pricefeed"
	"github.com/Matej398/crypto-folio/internal/records"
	"github.com/Matej398/crypto-folio/internal/sentiment"
	"github.com/Matej398/crypto-folio/internal/service"
	"github.com/Matej398/crypto-folio/internal/storage"
)

func main() {
	fmt.Println("Crypto-Folio API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize repositories
	userRepo := storage.NewUserRepository(postgres)
	portfolioRepo := storage.NewPortfolioRepository(postgres)
	historyRepo := storage.NewHistoryRepository(postgres)

	// Initialize upstream clients
	feedClient := pricefeed.NewClient(&cfg.PriceFeed)
	sentimentClient := sentiment.NewClient(&cfg.Sentiment)

	// Initialize record tracking
	recordRegistry := records.NewRegistry(portfolioRepo, cfg.Records.SettleInterval, logger)
	defer recordRegistry.Close()

	// Initialize services
	logger.Info("Initializing services...")

	authService := service.NewAuthService(userRepo, redis, cfg.Auth, logger)
	portfolioService := service.NewPortfolioService(portfolioRepo, feedClient, redis, recordRegistry, logger)
	historyService := service.NewHistoryService(historyRepo)

	timezone, err := time.LoadLocation(cfg.Snapshot.Timezone)
	if err != nil {
		logger.WithError(err).WithField("timezone", cfg.Snapshot.Timezone).Warn("Invalid timezone, using UTC")
		timezone = time.UTC
	}
	snapshotService := service.NewSnapshotService(portfolioRepo, historyRepo, feedClient, sentimentClient, timezone, logger)

	logger.Info("Services initialized")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  30,
		CronToken:       cfg.Snapshot.CronToken,
	}

	server := api.NewServer(serverConfig, authService, portfolioService, historyService, snapshotService, sentimentClient, logger)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("API server running")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	logger.Info("Server stopped")
}
