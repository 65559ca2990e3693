// Package queue carries reconciliation jobs over SQS with at-least-once
// delivery and an exponential retry policy.
package queue

import (
	"encoding/json"
	"time"
)

// Job is the payload sent from API -> SQS -> worker. JobID equals the
// correlation id of the ingestion attempt, which makes re-enqueueing within
// a single ingestion call idempotent at the queue layer.
type Job struct {
	JobID         string          `json:"job_id"`
	SourceSystem  string          `json:"source_system"`
	RequestID     string          `json:"request_id"`
	CorrelationID string          `json:"correlation_id"`
	EventID       string          `json:"event_id"` // raw event log reference
	Payload       json.RawMessage `json:"payload"`  // booking event as received
	Attempt       int             `json:"attempt"`  // 1-based
	MaxAttempts   int             `json:"max_attempts"`
}

// RetryPolicy controls redelivery of failed jobs.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy matches the queue contract: 3 attempts, exponential
// backoff from 5 seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
	}
}

// Delay returns how long to wait after attempt n fails before redelivery:
// base * 2^(n-1), so 5s, 10s, 20s with the default base.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay << (attempt - 1)
}
