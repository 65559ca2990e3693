package eventlog

import "time"

// RetentionWindow is how long raw events are kept before the TTL attribute
// makes them eligible for purge.
const RetentionWindow = 90 * 24 * time.Hour

// InboundEvent is the shape persisted in the webhook events DynamoDB table.
// The payload is immutable after append; only job_id and processed may be
// written afterwards.
type InboundEvent struct {
	EventID      string            `dynamodbav:"event_id"` // PK
	RequestID    string            `dynamodbav:"request_id"`
	SourceSystem string            `dynamodbav:"source_system"`
	EventType    string            `dynamodbav:"event_type"`
	Payload      string            `dynamodbav:"payload"` // raw bytes as received
	Headers      map[string]string `dynamodbav:"headers,omitempty"`
	SourceIP     string            `dynamodbav:"source_ip,omitempty"`
	JobID        string            `dynamodbav:"job_id,omitempty"`
	Processed    bool              `dynamodbav:"processed"`
	ReceivedAt   time.Time         `dynamodbav:"received_at"`
	ExpiresAt    int64             `dynamodbav:"expires_at"` // TTL epoch seconds
}
