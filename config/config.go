package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Queue backends.
const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Rewards   RewardsConfig
	Worker    WorkerConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string `env:"PORT"                 envDefault:"8080"`
	ReadTimeout        int    `env:"READ_TIMEOUT_SEC"     envDefault:"30"`
	WriteTimeout       int    `env:"WRITE_TIMEOUT_SEC"    envDefault:"30"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"` // comma-separated, or "*"
}

// DatabaseConfig selects the store. DATABASE_URL wins over SQLITE_PATH; with
// neither set the in-memory store is used.
type DatabaseConfig struct {
	URL        string `env:"DATABASE_URL"`
	SQLitePath string `env:"SQLITE_PATH"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"       envDefault:"0"`
}

// QueueConfig picks where award jobs are queued.
type QueueConfig struct {
	Backend  string `env:"QUEUE_BACKEND"   envDefault:"memory"`
	MaxDepth int64  `env:"QUEUE_MAX_DEPTH" envDefault:"10000"`
}

// RewardsConfig locates the external users API and the internal points API.
type RewardsConfig struct {
	PrimaryBaseURL  string        `env:"USERS_API_BASE"`
	PrimaryTimeout  time.Duration `env:"USERS_API_TIMEOUT"    envDefault:"5s"`
	FallbackBaseURL string        `env:"INTERNAL_API_BASE"    envDefault:"http://localhost:8080/api/v1"`
	FallbackTimeout time.Duration `env:"INTERNAL_API_TIMEOUT" envDefault:"10s"`
}

// WorkerConfig sizes the award worker pool.
type WorkerConfig struct {
	Workers       int           `env:"AWARD_WORKERS"        envDefault:"4"`
	QueueSize     int           `env:"AWARD_QUEUE_SIZE"     envDefault:"256"`
	MaxAttempts   int           `env:"AWARD_MAX_ATTEMPTS"   envDefault:"1"`
	RetryBackoff  time.Duration `env:"AWARD_RETRY_BACKOFF"  envDefault:"2s"`
	SubmitTimeout time.Duration `env:"AWARD_SUBMIT_TIMEOUT" envDefault:"100ms"`
}

// TelemetryConfig enables OTLP tracing when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string `env:"OTEL_ENDPOINT"`
	Enabled     bool   `env:"OTEL_ENABLED"      envDefault:"true"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"eventpoints"`
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Queue.Backend {
	case QueueBackendMemory, QueueBackendRedis:
	default:
		return fmt.Errorf("QUEUE_BACKEND must be %q or %q, got %q", QueueBackendMemory, QueueBackendRedis, c.Queue.Backend)
	}
	if c.Rewards.FallbackBaseURL == "" {
		return fmt.Errorf("INTERNAL_API_BASE is required")
	}
	return nil
}
