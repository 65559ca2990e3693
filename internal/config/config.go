package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration for the API and the worker.
type Config struct {
	HTTPAddr string

	// Postgres connection string (idempotency ledger + booking store).
	DBURL string

	// DynamoDB table holding raw inbound webhook events.
	EventLogTable string

	// SQS queue carrying reconciliation jobs.
	JobsQueueURL string

	// Per-source-system webhook shared secrets. Missing entries fail closed
	// at verification time.
	WebhookSecrets map[string]string

	// Worker pool size (concurrent in-flight jobs).
	WorkerConcurrency int

	// Retry policy for reconciliation jobs.
	JobMaxAttempts int
	JobBaseBackoff time.Duration

	// Per-job processing deadline in the worker.
	JobTimeout time.Duration

	// Ingestion rate limit per source system.
	RateLimit       int
	RateLimitWindow time.Duration

	// CloudWatch metric namespace; empty disables metric emission.
	MetricsNamespace string

	LogLevel  string
	LogFormat string
}

// Webhook secret env vars, one per configured source system.
// Mirrors the set of reservation platforms the backend integrates with.
var secretEnvVars = map[string]string{
	"booking.com": "WEBHOOK_SECRET_BOOKING_COM",
	"airbnb":      "WEBHOOK_SECRET_AIRBNB",
	"expedia":     "WEBHOOK_SECRET_EXPEDIA",
	"pms":         "WEBHOOK_SECRET_PMS",
}

// Load reads configuration from environment variables.
// DB_URL and JOBS_QUEUE_URL are required; everything else has defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DBURL:             strings.TrimSpace(os.Getenv("DB_URL")),
		EventLogTable:     getEnv("EVENT_LOG_TABLE", "webhook_events"),
		JobsQueueURL:      strings.TrimSpace(os.Getenv("JOBS_QUEUE_URL")),
		WebhookSecrets:    map[string]string{},
		WorkerConcurrency: 5,
		JobMaxAttempts:    3,
		JobBaseBackoff:    5 * time.Second,
		JobTimeout:        30 * time.Second,
		RateLimit:         100,
		RateLimitWindow:   60 * time.Second,
		MetricsNamespace:  getEnv("METRICS_NAMESPACE", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
	}

	if cfg.DBURL == "" {
		return Config{}, errors.New("DB_URL required")
	}
	if cfg.JobsQueueURL == "" {
		return Config{}, errors.New("JOBS_QUEUE_URL required")
	}

	for source, envVar := range secretEnvVars {
		if secret := strings.TrimSpace(os.Getenv(envVar)); secret != "" {
			cfg.WebhookSecrets[source] = secret
		}
	}

	var err error
	if cfg.WorkerConcurrency, err = getEnvInt("WORKER_CONCURRENCY", cfg.WorkerConcurrency); err != nil {
		return Config{}, err
	}
	if cfg.JobMaxAttempts, err = getEnvInt("JOB_MAX_ATTEMPTS", cfg.JobMaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.JobBaseBackoff, err = getEnvSeconds("JOB_BASE_BACKOFF_SECONDS", cfg.JobBaseBackoff); err != nil {
		return Config{}, err
	}
	if cfg.JobTimeout, err = getEnvSeconds("JOB_TIMEOUT_SECONDS", cfg.JobTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit, err = getEnvInt("RATE_LIMIT", cfg.RateLimit); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindow, err = getEnvSeconds("RATE_LIMIT_WINDOW_SECONDS", cfg.RateLimitWindow); err != nil {
		return Config{}, err
	}

	if cfg.WorkerConcurrency < 1 {
		return Config{}, errors.New("WORKER_CONCURRENCY must be >= 1")
	}
	if cfg.JobMaxAttempts < 1 {
		return Config{}, errors.New("JOB_MAX_ATTEMPTS must be >= 1")
	}

	return cfg, nil
}

// SourceSystems returns the identifiers that have a secret configured.
func (c Config) SourceSystems() []string {
	out := make([]string, 0, len(c.WebhookSecrets))
	for source := range c.WebhookSecrets {
		out = append(out, source)
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvSeconds(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer number of seconds: %w", key, err)
	}
	return time.Duration(n) * time.Second, nil
}
