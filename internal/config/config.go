// Package config provides configuration management for the crypto-folio
// application. It loads configuration from environment variables and .env
// files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	PriceFeed PriceFeedConfig
	Sentiment SentimentConfig
	Snapshot  SnapshotConfig
	Auth      AuthConfig
	Records   RecordsConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// PriceFeedConfig holds price feed (CoinGecko) configuration
type PriceFeedConfig struct {
	BaseURL       string
	BatchSize     int
	BatchInterval time.Duration
	Timeout       time.Duration
}

// SentimentConfig holds fear/greed index source configuration.
// Sources are tried in order; the first well-formed in-range value wins.
type SentimentConfig struct {
	PrimaryURL  string
	FallbackURL string
	Timeout     time.Duration
}

// SnapshotConfig holds daily snapshot job configuration
type SnapshotConfig struct {
	CronToken string
	Timezone  string
}

// AuthConfig holds session authentication configuration
type AuthConfig struct {
	DefaultEmail    string
	DefaultPassword string
	SessionTTL      time.Duration
}

// RecordsConfig holds record tracker configuration
type RecordsConfig struct {
	SettleInterval time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "crypto_folio"),
				User:           getEnv("POSTGRES_USER", "folio"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			Redis: RedisConfig{
				Host:     getEnv("REDIS_HOST", "localhost"),
				Port:     getEnv("REDIS_PORT", "6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
		},
		PriceFeed: PriceFeedConfig{
			BaseURL:       getEnv("PRICEFEED_BASE_URL", "https://api.coingecko.com/api/v3"),
			BatchSize:     getEnvAsInt("PRICEFEED_BATCH_SIZE", 120),
			BatchInterval: getEnvAsDuration("PRICEFEED_BATCH_INTERVAL", 250*time.Millisecond),
			Timeout:       getEnvAsDuration("PRICEFEED_TIMEOUT", 30*time.Second),
		},
		Sentiment: SentimentConfig{
			PrimaryURL:  getEnv("SENTIMENT_PRIMARY_URL", "https://api.alternative.me/fng/?limit=1"),
			FallbackURL: getEnv("SENTIMENT_FALLBACK_URL", ""),
			Timeout:     getEnvAsDuration("SENTIMENT_TIMEOUT", 10*time.Second),
		},
		Snapshot: SnapshotConfig{
			CronToken: getEnv("SNAPSHOT_CRON_TOKEN", ""),
			Timezone:  getEnv("SNAPSHOT_TIMEZONE", "UTC"),
		},
		Auth: AuthConfig{
			DefaultEmail:    getEnv("AUTH_DEFAULT_EMAIL", "admin@portfolio.com"),
			DefaultPassword: getEnv("AUTH_DEFAULT_PASSWORD", "portfolio123"),
			SessionTTL:      getEnvAsDuration("AUTH_SESSION_TTL", 24*time.Hour),
		},
		Records: RecordsConfig{
			SettleInterval: getEnvAsDuration("RECORDS_SETTLE_INTERVAL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
