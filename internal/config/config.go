// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server configuration.
type Config struct {
	// HTTP server
	Port            string
	ShutdownTimeout time.Duration

	// Storage
	StoreBackend string
	DBPath       string

	// Auth
	JWTSecret string

	// Logging
	LogLevel  string
	LogFormat string

	// Redis locks and cache; both are disabled when RedisAddr is empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NetCacheTTL   time.Duration

	// AMQP events; disabled when AMQPURL is empty.
	AMQPURL      string
	AMQPExchange string

	// Ledger engine
	MaxAttempts int
	RetryBase   time.Duration
	LockWait    time.Duration
	LockTTL     time.Duration
}

var storeBackends = []string{"sqlite", "memory"}

// Load reads .env if present, then the environment, falling back to defaults.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		DBPath:       getEnv("DB_PATH", "./data/ledger.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		NetCacheTTL:   getEnvDuration("NET_CACHE_TTL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger.events"),

		MaxAttempts: getEnvInt("LEDGER_MAX_ATTEMPTS", 5),
		RetryBase:   getEnvDuration("LEDGER_RETRY_BASE", 20*time.Millisecond),
		LockWait:    getEnvDuration("LEDGER_LOCK_WAIT", 2*time.Second),
		LockTTL:     getEnvDuration("LEDGER_LOCK_TTL", 10*time.Second),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(storeBackends, c.StoreBackend) {
		errs = append(errs, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, storeBackends))
	}
	if c.StoreBackend == "sqlite" && c.DBPath == "" {
		errs = append(errs, "DB_PATH cannot be empty when using the sqlite backend")
	}

	if len(c.JWTSecret) < 16 {
		errs = append(errs, "JWT_SECRET must be at least 16 bytes")
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP_EXCHANGE cannot be empty when AMQP_URL is set")
		}
	}

	if c.RedisDB < 0 {
		errs = append(errs, "REDIS_DB cannot be negative")
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, "LEDGER_MAX_ATTEMPTS must be at least 1")
	}
	for name, d := range map[string]time.Duration{
		"LEDGER_RETRY_BASE": c.RetryBase,
		"LEDGER_LOCK_WAIT":  c.LockWait,
		"LEDGER_LOCK_TTL":   c.LockTTL,
		"NET_CACHE_TTL":     c.NetCacheTTL,
		"SHUTDOWN_TIMEOUT":  c.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive", name))
		}
	}
	if c.LockTTL > 0 && c.LockWait > c.LockTTL {
		errs = append(errs, "LEDGER_LOCK_WAIT cannot exceed LEDGER_LOCK_TTL")
	}

	if len(errs) > 0 {
		slices.Sort(errs)
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
