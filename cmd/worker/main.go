package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/damlalper/concierge-ai-backend/internal/aws"
	"github.com/damlalper/concierge-ai-backend/internal/booking"
	"github.com/damlalper/concierge-ai-backend/internal/config"
	"github.com/damlalper/concierge-ai-backend/internal/eventlog"
	"github.com/damlalper/concierge-ai-backend/internal/idempotency"
	"github.com/damlalper/concierge-ai-backend/internal/logging"
	"github.com/damlalper/concierge-ai-backend/internal/metrics"
	"github.com/damlalper/concierge-ai-backend/internal/postgres"
	"github.com/damlalper/concierge-ai-backend/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Logger().Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(cfg.DBURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema bootstrap failed")
	}

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init aws clients")
	}

	processor := NewProcessor(
		idempotency.NewStore(db.Pool, idempotency.TTLWindow),
		eventlog.NewStore(clients.DynamoDB, cfg.EventLogTable, eventlog.RetentionWindow),
		booking.NewReconciler(booking.NewPgStore(db.Pool)),
		metrics.NewEmitter(clients.CloudWatch, cfg.MetricsNamespace),
	)

	consumer := queue.NewConsumer(queue.ConsumerConfig{
		Client:   clients.SQS,
		QueueURL: cfg.JobsQueueURL,
		Policy: queue.RetryPolicy{
			MaxAttempts: cfg.JobMaxAttempts,
			BaseDelay:   cfg.JobBaseBackoff,
		},
		Concurrency: cfg.WorkerConcurrency,
		JobTimeout:  cfg.JobTimeout,
		Handler:     processor.Process,
		Exhausted:   processor.Exhausted,
	})

	log.Info().
		Int("concurrency", cfg.WorkerConcurrency).
		Int("max_attempts", cfg.JobMaxAttempts).
		Msg("reconciliation worker starting")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("consumer stopped")
	}
	log.Info().Msg("worker drained and stopped")
}
