package eventlog

import (
	"context"
	"testing"
	"time"
)

func TestAppend_AssignsIDAndTTL(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "webhook_events", RetentionWindow)
	now := time.Unix(1700000000, 0)
	s.nowFunc = func() time.Time { return now }

	ctx := context.Background()
	eventID, err := s.Append(ctx, InboundEvent{
		RequestID:    "req-1",
		SourceSystem: "booking.com",
		EventType:    "booking.created",
		Payload:      `{"bookingId":"B-100"}`,
		SourceIP:     "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if eventID == "" {
		t.Fatal("append must assign an event id")
	}

	ev, err := s.Get(ctx, eventID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ev == nil {
		t.Fatal("expected stored event")
	}
	if ev.Payload != `{"bookingId":"B-100"}` {
		t.Fatalf("payload altered: %s", ev.Payload)
	}
	if ev.Processed {
		t.Fatal("fresh events must not be marked processed")
	}
	wantExpiry := now.Add(RetentionWindow).Unix()
	if ev.ExpiresAt != wantExpiry {
		t.Fatalf("expiry = %d, want %d (90 days)", ev.ExpiresAt, wantExpiry)
	}
}

func TestAttachJobRef_SetOnce(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "webhook_events", RetentionWindow)
	ctx := context.Background()

	eventID, err := s.Append(ctx, InboundEvent{RequestID: "req-1", SourceSystem: "pms", Payload: `{}`})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.AttachJobRef(ctx, eventID, "job-1"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	// second attach is a no-op, not an error
	if err := s.AttachJobRef(ctx, eventID, "job-2"); err != nil {
		t.Fatalf("repeat attach must be swallowed: %v", err)
	}

	ev, _ := s.Get(ctx, eventID)
	if ev.JobID != "job-1" {
		t.Fatalf("job ref must be set exactly once, got %s", ev.JobID)
	}
}

func TestMarkProcessed(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "webhook_events", RetentionWindow)
	ctx := context.Background()

	eventID, _ := s.Append(ctx, InboundEvent{RequestID: "req-1", SourceSystem: "pms", Payload: `{}`})
	if err := s.MarkProcessed(ctx, eventID); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	ev, _ := s.Get(ctx, eventID)
	if !ev.Processed {
		t.Fatal("processed flag not set")
	}
}

func TestGet_Missing(t *testing.T) {
	s := NewStore(newSimpleMock(), "webhook_events", RetentionWindow)
	ev, err := s.Get(context.Background(), "nope")
	if err != nil || ev != nil {
		t.Fatalf("missing event should be (nil, nil), got %v %v", ev, err)
	}
}
