package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Ledger record statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// TTLWindow is how long a reservation blocks replays of the same request id.
const TTLWindow = 90 * 24 * time.Hour

// Record is a row in the idempotency_keys table.
type Record struct {
	KeyHash      string
	SourceSystem string
	RequestID    string
	JobID        string
	Status       string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// DuplicateError signals that a reservation already exists for the key.
// JobID carries the job reference of the original ingestion so callers can
// surface it; it is empty when the original attempt died before enqueueing.
type DuplicateError struct {
	JobID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate request (job %s)", e.JobID)
}

// KeyHash is the deterministic fingerprint of an ingestion request:
// SHA-256 over "sourceSystem:requestId", hex encoded (64 chars).
func KeyHash(sourceSystem, requestID string) string {
	sum := sha256.Sum256([]byte(sourceSystem + ":" + requestID))
	return hex.EncodeToString(sum[:])
}
