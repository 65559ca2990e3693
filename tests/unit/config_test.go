package unit

import (
	"os"
	"testing"
	"time"

	"github.com/damlalper/concierge-ai-backend/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_URL", "postgres://localhost:5432/concierge")
	t.Setenv("JOBS_QUEUE_URL", "https://sqs.eu-central-1.amazonaws.com/1/jobs")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %s, want :8080", cfg.HTTPAddr)
	}
	if cfg.EventLogTable != "webhook_events" {
		t.Errorf("EventLogTable = %s", cfg.EventLogTable)
	}
	if cfg.WorkerConcurrency != 5 {
		t.Errorf("WorkerConcurrency = %d, want 5", cfg.WorkerConcurrency)
	}
	if cfg.JobMaxAttempts != 3 {
		t.Errorf("JobMaxAttempts = %d, want 3", cfg.JobMaxAttempts)
	}
	if cfg.JobBaseBackoff != 5*time.Second {
		t.Errorf("JobBaseBackoff = %v, want 5s", cfg.JobBaseBackoff)
	}
	if cfg.RateLimit != 100 || cfg.RateLimitWindow != 60*time.Second {
		t.Errorf("rate limit = %d per %v, want 100 per 60s", cfg.RateLimit, cfg.RateLimitWindow)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("DB_URL")
	os.Unsetenv("JOBS_QUEUE_URL")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error when DB_URL is missing")
	}

	t.Setenv("DB_URL", "postgres://localhost:5432/concierge")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error when JOBS_QUEUE_URL is missing")
	}
}

func TestLoad_WebhookSecrets(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WEBHOOK_SECRET_BOOKING_COM", "secret-bcom")
	t.Setenv("WEBHOOK_SECRET_PMS", "secret-pms")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.WebhookSecrets["booking.com"] != "secret-bcom" {
		t.Errorf("booking.com secret not loaded")
	}
	if cfg.WebhookSecrets["pms"] != "secret-pms" {
		t.Errorf("pms secret not loaded")
	}
	if _, configured := cfg.WebhookSecrets["airbnb"]; configured {
		t.Error("unset secrets must be absent, not empty")
	}

	sources := cfg.SourceSystems()
	if len(sources) != 2 {
		t.Errorf("SourceSystems = %v, want the two configured sources", sources)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WORKER_CONCURRENCY", "10")
	t.Setenv("JOB_MAX_ATTEMPTS", "5")
	t.Setenv("JOB_BASE_BACKOFF_SECONDS", "2")
	t.Setenv("JOB_TIMEOUT_SECONDS", "60")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.WorkerConcurrency != 10 {
		t.Errorf("WorkerConcurrency = %d, want 10", cfg.WorkerConcurrency)
	}
	if cfg.JobMaxAttempts != 5 {
		t.Errorf("JobMaxAttempts = %d, want 5", cfg.JobMaxAttempts)
	}
	if cfg.JobBaseBackoff != 2*time.Second {
		t.Errorf("JobBaseBackoff = %v, want 2s", cfg.JobBaseBackoff)
	}
	if cfg.JobTimeout != 60*time.Second {
		t.Errorf("JobTimeout = %v, want 60s", cfg.JobTimeout)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("WORKER_CONCURRENCY", "not-a-number")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for non-integer WORKER_CONCURRENCY")
	}

	t.Setenv("WORKER_CONCURRENCY", "0")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for zero WORKER_CONCURRENCY")
	}
}
