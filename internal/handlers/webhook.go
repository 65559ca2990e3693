// Package handlers wires the webhook trust boundary to the ledger, the raw
// event log and the job queue.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/damlalper/concierge-ai-backend/internal/eventlog"
	"github.com/damlalper/concierge-ai-backend/internal/idempotency"
	"github.com/damlalper/concierge-ai-backend/internal/logging"
	"github.com/damlalper/concierge-ai-backend/internal/metrics"
	"github.com/damlalper/concierge-ai-backend/internal/queue"
	"github.com/damlalper/concierge-ai-backend/internal/signature"
	"github.com/damlalper/concierge-ai-backend/internal/validation"
)

// WebhookResponse is the body returned by POST /webhook/booking.
type WebhookResponse struct {
	Success       bool   `json:"success"`
	JobID         string `json:"jobId"`
	CorrelationID string `json:"correlationId"`
	Message       string `json:"message"`
}

// HandlerConfig groups dependencies for the webhook handler.
type HandlerConfig struct {
	Verifier    *signature.Verifier
	Ledger      *idempotency.Store
	EventLog    *eventlog.Store
	Publisher   *queue.Publisher
	Metrics     *metrics.Emitter
	MaxAttempts int

	Sources         []string
	RateLimit       int
	RateLimitWindow time.Duration
}

// RegisterWebhookRoutes registers the booking webhook endpoint.
func RegisterWebhookRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	group := r.Group("/webhook")
	if cfg.RateLimit > 0 {
		group.Use(RateLimitMiddleware(cfg.Sources, cfg.RateLimit, cfg.RateLimitWindow))
	}

	group.POST("/booking", func(c *gin.Context) {
		ctx := c.Request.Context()

		requestID := c.GetHeader("x-request-id")
		sourceSystem := c.GetHeader("x-source-system")
		sig := c.GetHeader("x-signature")
		timestamp := c.GetHeader("x-timestamp")
		if requestID == "" || sourceSystem == "" || sig == "" || timestamp == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing required headers"})
			return
		}

		// The signature covers the exact bytes received, so the body is read
		// raw before any decoding.
		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
			return
		}

		if !cfg.Verifier.Verify(raw, sig, timestamp, sourceSystem) {
			cfg.Metrics.Count(ctx, metrics.MetricWebhookRejected, map[string]string{"source_system": sourceSystem})
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		var payload validation.BookingEventPayload
		if err := validation.DecodeAndValidate(raw, &payload, v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "validation failed",
				"fields": validation.ErrorsToMap(err),
			})
			return
		}

		correlationID := uuid.NewString()
		ctx = logging.WithCorrelationID(ctx, correlationID)
		log := logging.Ctx(ctx)

		// The correlation id doubles as the job reference: it keys the queue
		// entry, so re-enqueueing within this ingestion call is idempotent.
		jobID := correlationID

		keyHash, err := cfg.Ledger.Reserve(ctx, sourceSystem, requestID)
		if err != nil {
			var dup *idempotency.DuplicateError
			if errors.As(err, &dup) {
				log.Warn().
					Str("source_system", sourceSystem).
					Str("request_id", requestID).
					Str("job_id", dup.JobID).
					Msg("duplicate webhook request")
				cfg.Metrics.Count(ctx, metrics.MetricWebhookDuplicate, map[string]string{"source_system": sourceSystem})
				c.JSON(http.StatusConflict, WebhookResponse{
					Success:       false,
					JobID:         dup.JobID,
					CorrelationID: correlationID,
					Message:       "Duplicate request",
				})
				return
			}
			log.Error().Err(err).Msg("idempotency reservation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
			return
		}

		eventID, err := cfg.EventLog.Append(ctx, eventlog.InboundEvent{
			RequestID:    requestID,
			SourceSystem: sourceSystem,
			EventType:    payload.EventType,
			Payload:      string(raw),
			Headers:      flattenHeaders(c.Request.Header),
			SourceIP:     c.ClientIP(),
		})
		if err != nil {
			log.Error().Err(err).Msg("raw event append failed")
			releaseReservation(ctx, cfg.Ledger, keyHash)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
			return
		}

		job := queue.Job{
			JobID:         jobID,
			SourceSystem:  sourceSystem,
			RequestID:     requestID,
			CorrelationID: correlationID,
			EventID:       eventID,
			Payload:       raw,
			Attempt:       1,
			MaxAttempts:   cfg.MaxAttempts,
		}
		if err := cfg.Publisher.Enqueue(ctx, job, 0); err != nil {
			log.Error().Err(err).Msg("job enqueue failed")
			releaseReservation(ctx, cfg.Ledger, keyHash)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
			return
		}

		if err := cfg.Ledger.Commit(ctx, keyHash, jobID); err != nil {
			// The job is already queued; the reservation stays pending with
			// no job ref rather than failing the accepted request.
			log.Error().Err(err).Msg("ledger commit failed")
		}
		if err := cfg.EventLog.AttachJobRef(ctx, eventID, jobID); err != nil {
			log.Error().Err(err).Msg("attach job ref failed")
		}

		log.Info().
			Str("source_system", sourceSystem).
			Str("request_id", requestID).
			Str("job_id", jobID).
			Str("event_id", eventID).
			Msg("webhook accepted and queued")
		cfg.Metrics.Count(ctx, metrics.MetricWebhookAccepted, map[string]string{"source_system": sourceSystem})

		c.JSON(http.StatusAccepted, WebhookResponse{
			Success:       true,
			JobID:         jobID,
			CorrelationID: correlationID,
			Message:       "Webhook accepted and queued for processing",
		})
	})
}

// releaseReservation undoes a reservation whose ingestion never produced a
// job, so the sender's retry can go through instead of hitting 409 forever.
func releaseReservation(ctx context.Context, ledger *idempotency.Store, keyHash string) {
	if err := ledger.Release(ctx, keyHash); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("reservation release failed")
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vals := range h {
		if len(vals) > 0 {
			out[k] = vals[0]
		}
	}
	return out
}
