package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// DBLockTimeout bounds how long a trade transaction may wait on a row
	// lock before the store aborts the statement.
	DBLockTimeout time.Duration

	ServerPort string
	JWTSecret  string

	LogLevel  string
	LogFormat string

	TradeMaxAttempts int
	TradeBackoffBase time.Duration

	SeedPlayers   int
	SeedBatchSize int
}

func NewConfig() (*Config, error) {
	return &Config{
		DBHost:     getEnvOrDefault("DATABASE_HOST", "localhost"),
		DBPort:     getEnvOrDefault("DATABASE_PORT", "5432"),
		DBUser:     getEnvOrDefault("DATABASE_USER", "postgres"),
		DBPassword: getEnvOrDefault("DATABASE_PASSWORD", "password"),
		DBName:     getEnvOrDefault("DATABASE_NAME", "market"),

		DBLockTimeout: getDurationOrDefault("DATABASE_LOCK_TIMEOUT", 3*time.Second),

		ServerPort: getEnvOrDefault("SERVER_PORT", "8080"),
		JWTSecret:  getEnvOrDefault("JWT_SECRET", "mysecret"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		TradeMaxAttempts: getIntOrDefault("TRADE_MAX_ATTEMPTS", 3),
		TradeBackoffBase: getDurationOrDefault("TRADE_BACKOFF_BASE", 50*time.Millisecond),

		SeedPlayers:   getIntOrDefault("SEED_PLAYERS", 0),
		SeedBatchSize: getIntOrDefault("SEED_BATCH_SIZE", 50),
	}, nil
}

func getEnvOrDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getIntOrDefault(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return def
}

func getDurationOrDefault(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return def
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}
