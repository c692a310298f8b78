// Package config provides configuration management for the RelayBus standalone server.
// It loads settings from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the RelayBus server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	RelayBus RelayBusConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver   string // mysql, postgres, sqlite3
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Prefix   string // Table prefix (default: "relaybus_")
}

// RelayBusConfig holds delivery-layer configuration.
type RelayBusConfig struct {
	LockDurationSeconds     int  // Broker lock duration in seconds
	RenewalIntervalSeconds  int  // Renewal sweep interval in seconds
	RenewalThresholdSeconds int  // Renew locks expiring within this window, in seconds
	MaxConcurrentRenewals   int  // Concurrent renewal calls per sweep
	RetentionDays           int  // Terminal lock retention in days (0 disables cleanup)
	DeadLetterThreshold     int  // Dead-letter alert threshold (0 disables)
	EnableNotifications     bool // Enable notification service
}

// Load loads configuration from environment variables.
// Follows 12-factor app principles - configuration via environment.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "mysql"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 3306),
			User:     getEnv("DB_USER", "relaybus"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "relaybus"),
			Prefix:   getEnv("DB_PREFIX", "relaybus_"),
		},
		RelayBus: RelayBusConfig{
			LockDurationSeconds:     getEnvInt("RELAYBUS_LOCK_DURATION", 300),
			RenewalIntervalSeconds:  getEnvInt("RELAYBUS_RENEWAL_INTERVAL", 30),
			RenewalThresholdSeconds: getEnvInt("RELAYBUS_RENEWAL_THRESHOLD", 60),
			MaxConcurrentRenewals:   getEnvInt("RELAYBUS_MAX_CONCURRENT_RENEWALS", 8),
			RetentionDays:           getEnvInt("RELAYBUS_RETENTION_DAYS", 30),
			DeadLetterThreshold:     getEnvInt("RELAYBUS_DLQ_THRESHOLD", 100),
			EnableNotifications:     getEnvBool("RELAYBUS_ENABLE_NOTIFICATIONS", true),
		},
	}

	// Validate required fields
	if cfg.Database.Driver != "sqlite3" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD environment variable is required")
	}
	if cfg.RelayBus.RenewalIntervalSeconds <= 0 {
		return nil, fmt.Errorf("RELAYBUS_RENEWAL_INTERVAL must be positive")
	}
	if cfg.RelayBus.RenewalThresholdSeconds <= 0 {
		return nil, fmt.Errorf("RELAYBUS_RENEWAL_THRESHOLD must be positive")
	}

	return cfg, nil
}

// GetDSN returns the database connection string based on driver.
func (c *DatabaseConfig) GetDSN() string {
	switch strings.ToLower(c.Driver) {
	case "mysql":
		// clientFoundRows makes RowsAffected count matched rows, which the
		// repositories rely on for idempotent updates.
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&clientFoundRows=true",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Database)
	case "sqlite3":
		return c.Database // SQLite uses file path as DSN
	default:
		return ""
	}
}

// getEnv retrieves environment variable or returns default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves environment variable as boolean or returns default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
