// Package idempotency is the durable ledger that guarantees at-most-one
// reconciliation job per externally-originated request.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the ledger needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store encapsulates ledger operations against Postgres.
type Store struct {
	db        Querier
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

// NewStore returns a configured Store. ttlWindow is how long records are
// retained (e.g. idempotency.TTLWindow).
func NewStore(db Querier, ttlWindow time.Duration) *Store {
	return &Store{
		db:        db,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// Reserve claims the key for (sourceSystem, requestID) and returns its hash.
//
// Implemented as insert-first: the row is written with ON CONFLICT DO NOTHING
// so the uniqueness constraint, not a read-then-write check, decides the
// race between concurrent deliveries. When another reservation won, the
// existing row is read back and a DuplicateError carrying its job reference
// is returned.
func (s *Store) Reserve(ctx context.Context, sourceSystem, requestID string) (string, error) {
	keyHash := KeyHash(sourceSystem, requestID)

	for {
		now := s.nowFunc().UTC()
		tag, err := s.db.Exec(ctx, `
			INSERT INTO idempotency_keys (key_hash, source_system, request_id, status, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (key_hash) DO NOTHING
		`, keyHash, sourceSystem, requestID, StatusPending, now, now.Add(s.ttlWindow))
		if err != nil {
			return "", fmt.Errorf("reserve idempotency key: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return keyHash, nil
		}

		var jobID *string
		err = s.db.QueryRow(ctx, `
			SELECT job_id FROM idempotency_keys WHERE key_hash = $1
		`, keyHash).Scan(&jobID)
		if errors.Is(err, pgx.ErrNoRows) {
			// The conflicting reservation was released between the insert and
			// this read; the key is free again, so claim it. Each pass through
			// here requires another concurrent release, so the loop terminates.
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read existing reservation: %w", err)
		}

		dup := &DuplicateError{}
		if jobID != nil {
			dup.JobID = *jobID
		}
		return "", dup
	}
}

// Commit attaches the job reference to a fresh reservation.
func (s *Store) Commit(ctx context.Context, keyHash, jobID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE idempotency_keys SET job_id = $2 WHERE key_hash = $1
	`, keyHash, jobID)
	if err != nil {
		return fmt.Errorf("commit job reference: %w", err)
	}
	return nil
}

// Release removes a reservation whose ingestion failed before a job could be
// enqueued, so the sender's retry is not answered with a duplicate forever.
func (s *Store) Release(ctx context.Context, keyHash string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM idempotency_keys WHERE key_hash = $1
	`, keyHash)
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	return nil
}

// Get retrieves a ledger record by key hash. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, keyHash string) (*Record, error) {
	rec := Record{KeyHash: keyHash}
	var jobID *string
	err := s.db.QueryRow(ctx, `
		SELECT source_system, request_id, job_id, status, created_at, expires_at
		FROM idempotency_keys WHERE key_hash = $1
	`, keyHash).Scan(&rec.SourceSystem, &rec.RequestID, &jobID, &rec.Status, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	if jobID != nil {
		rec.JobID = *jobID
	}
	return &rec, nil
}

// MarkProcessing transitions a record to processing when a worker picks up
// its job.
func (s *Store) MarkProcessing(ctx context.Context, keyHash string) error {
	return s.setStatus(ctx, keyHash, StatusProcessing)
}

// MarkDone records successful reconciliation.
func (s *Store) MarkDone(ctx context.Context, keyHash string) error {
	return s.setStatus(ctx, keyHash, StatusDone)
}

// MarkFailed records a job that exhausted its retry budget.
func (s *Store) MarkFailed(ctx context.Context, keyHash string) error {
	return s.setStatus(ctx, keyHash, StatusFailed)
}

func (s *Store) setStatus(ctx context.Context, keyHash, status string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE idempotency_keys SET status = $2 WHERE key_hash = $1
	`, keyHash, status)
	if err != nil {
		return fmt.Errorf("set idempotency status %s: %w", status, err)
	}
	return nil
}

// PurgeExpired deletes records past their expiry. Records whose job is still
// pending or processing are never purged, whatever their age.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM idempotency_keys
		WHERE expires_at < $1 AND status IN ($2, $3)
	`, now, StatusDone, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("purge expired idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
