package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/damlalper/concierge-ai-backend/internal/aws"
	"github.com/damlalper/concierge-ai-backend/internal/config"
	"github.com/damlalper/concierge-ai-backend/internal/eventlog"
	"github.com/damlalper/concierge-ai-backend/internal/handlers"
	"github.com/damlalper/concierge-ai-backend/internal/idempotency"
	"github.com/damlalper/concierge-ai-backend/internal/logging"
	"github.com/damlalper/concierge-ai-backend/internal/metrics"
	"github.com/damlalper/concierge-ai-backend/internal/postgres"
	"github.com/damlalper/concierge-ai-backend/internal/queue"
	"github.com/damlalper/concierge-ai-backend/internal/signature"
)

func setupRouter(cfg handlers.HandlerConfig, db *postgres.DB) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterWebhookRoutes(r, cfg)

	return r
}

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

	handlerCfg := handlers.HandlerConfig{
		Verifier:        signature.NewVerifier(cfg.WebhookSecrets),
		Ledger:          idempotency.NewStore(db.Pool, idempotency.TTLWindow),
		EventLog:        eventlog.NewStore(clients.DynamoDB, cfg.EventLogTable, eventlog.RetentionWindow),
		Publisher:       queue.NewPublisher(clients.SQS, cfg.JobsQueueURL),
		Metrics:         metrics.NewEmitter(clients.CloudWatch, cfg.MetricsNamespace),
		MaxAttempts:     cfg.JobMaxAttempts,
		Sources:         cfg.SourceSystems(),
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: setupRouter(handlerCfg, db),
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("webhook api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}
