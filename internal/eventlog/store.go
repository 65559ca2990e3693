// Package eventlog is the append-only durable record of every accepted
// inbound webhook payload, kept apart from the relational schema so
// ingestion stays decoupled from reconciliation.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/damlalper/concierge-ai-backend/internal/aws"
)

// Store encapsulates event log operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

// NewStore returns a configured Store. ttlWindow is the retention period
// written into the TTL attribute (e.g. eventlog.RetentionWindow).
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// Append persists an accepted inbound event and returns its event id.
// Append must complete before the job is enqueued: a crash between the two
// leaves an auditable orphan record rather than an untraceable job.
func (s *Store) Append(ctx context.Context, ev InboundEvent) (string, error) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	now := s.nowFunc().UTC()
	ev.ReceivedAt = now
	ev.ExpiresAt = now.Add(s.ttlWindow).Unix()

	item, err := attributevalue.MarshalMap(ev)
	if err != nil {
		return "", fmt.Errorf("marshal inbound event: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(event_id)"),
	})
	if err != nil {
		return "", fmt.Errorf("append inbound event: %w", err)
	}

	return ev.EventID, nil
}

// AttachJobRef sets the job reference on an appended event. The write is
// conditional on job_id being absent so the reference is only ever set once;
// a second attach for the same event is a no-op.
func (s *Store) AttachJobRef(ctx context.Context, eventID, jobID string) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"event_id": &types.AttributeValueMemberS{Value: eventID},
		},
		UpdateExpression:    awsString("SET job_id = :j"),
		ConditionExpression: awsString("attribute_not_exists(job_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":j": &types.AttributeValueMemberS{Value: jobID},
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
			return nil
		}
		return fmt.Errorf("attach job ref: %w", err)
	}
	return nil
}

// MarkProcessed flips the processed flag after successful reconciliation.
func (s *Store) MarkProcessed(ctx context.Context, eventID string) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"event_id": &types.AttributeValueMemberS{Value: eventID},
		},
		UpdateExpression: awsString("SET processed = :p"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// Get fetches an event by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, eventID string) (*InboundEvent, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"event_id": &types.AttributeValueMemberS{Value: eventID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get inbound event: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var ev InboundEvent
	if err := attributevalue.UnmarshalMap(out.Item, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal inbound event: %w", err)
	}
	return &ev, nil
}

// Helper
func awsString(s string) *string { return &s }
