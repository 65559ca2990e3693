package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dyntypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/damlalper/concierge-ai-backend/internal/booking"
	"github.com/damlalper/concierge-ai-backend/internal/eventlog"
	"github.com/damlalper/concierge-ai-backend/internal/idempotency"
	"github.com/damlalper/concierge-ai-backend/internal/queue"
)

// --- ledger fake tracking statuses by key hash ---

type fakeLedger struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{statuses: map[string]string{}}
}

func (f *fakeLedger) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := args[0].(string)
	switch {
	case strings.Contains(sql, "INSERT INTO idempotency_keys"):
		if _, exists := f.statuses[key]; exists {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		}
		f.statuses[key] = args[3].(string)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "SET status"):
		f.statuses[key] = args[1].(string)
		return pgconn.NewCommandTag("UPDATE 1"), nil
	case strings.Contains(sql, "SET job_id"):
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected sql: " + sql)
}

func (f *fakeLedger) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return noRow{}
}

type noRow struct{}

func (noRow) Scan(dest ...any) error { return pgx.ErrNoRows }

func (f *fakeLedger) status(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[key]
}

// --- event log fake ---

type fakeEvents struct {
	mu        sync.Mutex
	processed map[string]bool
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{processed: map[string]bool{}}
}

func (f *fakeEvents) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	return &dyn.PutItemOutput{}, nil
}

func (f *fakeEvents) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	return &dyn.GetItemOutput{}, nil
}

func (f *fakeEvents) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := params.Key["event_id"].(*dyntypes.AttributeValueMemberS).Value
	if _, found := params.ExpressionAttributeValues[":p"]; found {
		f.processed[id] = true
	}
	return &dyn.UpdateItemOutput{}, nil
}

// --- booking store fake ---

type fakeBookings struct {
	hotels    map[string]bool
	upserts   int
	upsertErr error
}

func (f *fakeBookings) EnsureGuest(ctx context.Context, g booking.GuestInput) (string, error) {
	return "guest-1", nil
}

func (f *fakeBookings) HotelExists(ctx context.Context, hotelID string) (bool, error) {
	return f.hotels[hotelID], nil
}

func (f *fakeBookings) UpsertBooking(ctx context.Context, b booking.Upsert) (string, error) {
	if f.upsertErr != nil {
		return "", f.upsertErr
	}
	f.upserts++
	return "bk-1", nil
}

// --- tests ---

func workerTestJob(t *testing.T) queue.Job {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"eventType":   "booking.created",
		"bookingId":   "B-100",
		"hotelId":     "h-1",
		"guest":       map[string]string{"firstName": "Ayse", "lastName": "Yilmaz", "email": "ayse@example.com"},
		"checkIn":     "2026-09-01T14:00:00Z",
		"checkOut":    "2026-09-05T11:00:00Z",
		"roomType":    "deluxe",
		"totalAmount": 950.5,
		"currency":    "EUR",
	})
	if err != nil {
		t.Fatal(err)
	}
	return queue.Job{
		JobID:         "job-1",
		SourceSystem:  "booking.com",
		RequestID:     "req-1",
		CorrelationID: "job-1",
		EventID:       "ev-1",
		Payload:       payload,
		Attempt:       1,
		MaxAttempts:   3,
	}
}

func newWorkerEnv(bookings *fakeBookings) (*Processor, *fakeLedger, *fakeEvents) {
	ledgerDB := newFakeLedger()
	events := newFakeEvents()
	p := NewProcessor(
		idempotency.NewStore(ledgerDB, idempotency.TTLWindow),
		eventlog.NewStore(events, "webhook_events", eventlog.RetentionWindow),
		booking.NewReconciler(bookings),
		nil,
	)
	return p, ledgerDB, events
}

func TestProcess_Success(t *testing.T) {
	bookings := &fakeBookings{hotels: map[string]bool{"h-1": true}}
	p, ledgerDB, events := newWorkerEnv(bookings)
	job := workerTestJob(t)

	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("process: %v", err)
	}

	if bookings.upserts != 1 {
		t.Fatalf("expected one booking upsert, got %d", bookings.upserts)
	}
	keyHash := idempotency.KeyHash(job.SourceSystem, job.RequestID)
	if got := ledgerDB.status(keyHash); got != idempotency.StatusDone {
		t.Fatalf("ledger status = %s, want done", got)
	}
	if !events.processed["ev-1"] {
		t.Fatal("raw event must be flagged processed")
	}
}

func TestProcess_FailurePropagatesForRetry(t *testing.T) {
	bookings := &fakeBookings{
		hotels:    map[string]bool{"h-1": true},
		upsertErr: errors.New("deadlock detected"),
	}
	p, ledgerDB, events := newWorkerEnv(bookings)
	job := workerTestJob(t)

	if err := p.Process(context.Background(), job); err == nil {
		t.Fatal("expected error to reach the queue layer")
	}

	keyHash := idempotency.KeyHash(job.SourceSystem, job.RequestID)
	if got := ledgerDB.status(keyHash); got != idempotency.StatusProcessing {
		t.Fatalf("failed job must stay processing, got %s", got)
	}
	if events.processed["ev-1"] {
		t.Fatal("failed job must not flag the raw event processed")
	}
}

func TestProcess_MissingHotelStillRetried(t *testing.T) {
	bookings := &fakeBookings{hotels: map[string]bool{}}
	p, _, _ := newWorkerEnv(bookings)

	err := p.Process(context.Background(), workerTestJob(t))
	if err == nil {
		t.Fatal("missing hotel must fail the job")
	}
	// the queue layer treats every error uniformly; terminal tagging is for
	// logs, not for skipping retries
	if !booking.IsTerminal(err) {
		t.Fatalf("expected terminal tag on missing hotel, got %v", err)
	}
}

func TestProcess_MalformedPayload(t *testing.T) {
	bookings := &fakeBookings{hotels: map[string]bool{"h-1": true}}
	p, _, _ := newWorkerEnv(bookings)

	job := workerTestJob(t)
	job.Payload = []byte("{not json")
	if err := p.Process(context.Background(), job); err == nil {
		t.Fatal("malformed payload must fail the job")
	}
	if bookings.upserts != 0 {
		t.Fatal("no state may change for undecodable payloads")
	}
}

func TestExhausted_MarksLedgerFailed(t *testing.T) {
	bookings := &fakeBookings{hotels: map[string]bool{}}
	p, ledgerDB, _ := newWorkerEnv(bookings)
	job := workerTestJob(t)
	job.Attempt = 3

	p.Exhausted(context.Background(), job, errors.New("hotel not found: h-1"))

	keyHash := idempotency.KeyHash(job.SourceSystem, job.RequestID)
	if got := ledgerDB.status(keyHash); got != idempotency.StatusFailed {
		t.Fatalf("ledger status = %s, want failed", got)
	}
}
