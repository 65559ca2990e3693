package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/damlalper/concierge-ai-backend/internal/booking"
	"github.com/damlalper/concierge-ai-backend/internal/eventlog"
	"github.com/damlalper/concierge-ai-backend/internal/idempotency"
	"github.com/damlalper/concierge-ai-backend/internal/logging"
	"github.com/damlalper/concierge-ai-backend/internal/metrics"
	"github.com/damlalper/concierge-ai-backend/internal/queue"
	"github.com/damlalper/concierge-ai-backend/internal/validation"
)

// Processor bridges the job queue to the reconciler and keeps the ledger and
// raw event log in step with each job's lifecycle.
type Processor struct {
	ledger     *idempotency.Store
	events     *eventlog.Store
	reconciler *booking.Reconciler
	metrics    *metrics.Emitter
}

// NewProcessor returns a Processor over the given collaborators.
func NewProcessor(ledger *idempotency.Store, events *eventlog.Store, rec *booking.Reconciler, em *metrics.Emitter) *Processor {
	return &Processor{
		ledger:     ledger,
		events:     events,
		reconciler: rec,
		metrics:    em,
	}
}

// Process handles one delivery. Errors are returned to the queue layer,
// which applies the retry policy; the whole path is idempotent so a
// redelivered job converges to the same state.
func (p *Processor) Process(ctx context.Context, job queue.Job) error {
	ctx = logging.WithCorrelationID(ctx, job.CorrelationID)
	log := logging.Ctx(ctx)

	keyHash := idempotency.KeyHash(job.SourceSystem, job.RequestID)
	if err := p.ledger.MarkProcessing(ctx, keyHash); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	var ev validation.BookingEventPayload
	if err := json.Unmarshal(job.Payload, &ev); err != nil {
		return fmt.Errorf("decode booking payload: %w", err)
	}

	bookingID, err := p.reconciler.Reconcile(ctx, &ev, job.SourceSystem)
	if err != nil {
		if booking.IsTerminal(err) {
			log.Warn().Err(err).
				Str("job_id", job.JobID).
				Int("attempt", job.Attempt).
				Msg("terminal reconciliation failure")
		}
		return err
	}

	if err := p.ledger.MarkDone(ctx, keyHash); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	if err := p.events.MarkProcessed(ctx, job.EventID); err != nil {
		// Reconciliation committed; the audit flag can lag behind.
		log.Warn().Err(err).Str("event_id", job.EventID).Msg("mark processed failed")
	}

	log.Info().
		Str("job_id", job.JobID).
		Str("booking_id", bookingID).
		Int("attempt", job.Attempt).
		Msg("job completed")
	p.metrics.Count(ctx, metrics.MetricJobCompleted, map[string]string{"source_system": job.SourceSystem})

	return nil
}

// Exhausted is the terminal-failure hook: the job burned its whole retry
// budget. Logged with full context for operator follow-up; no automatic
// remediation.
func (p *Processor) Exhausted(ctx context.Context, job queue.Job, err error) {
	ctx = logging.WithCorrelationID(ctx, job.CorrelationID)
	logging.Ctx(ctx).Error().Err(err).
		Str("job_id", job.JobID).
		Str("source_system", job.SourceSystem).
		Str("request_id", job.RequestID).
		Str("event_id", job.EventID).
		Int("attempts", job.Attempt).
		Msg("job failed permanently, operator attention required")

	keyHash := idempotency.KeyHash(job.SourceSystem, job.RequestID)
	if markErr := p.ledger.MarkFailed(ctx, keyHash); markErr != nil {
		logging.Ctx(ctx).Error().Err(markErr).Str("job_id", job.JobID).Msg("mark failed errored")
	}
	p.metrics.Count(ctx, metrics.MetricJobExhausted, map[string]string{"source_system": job.SourceSystem})
}
