package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/damlalper/concierge-ai-backend/internal/aws"
)

// Publisher wraps an SQS client and a queue URL.
type Publisher struct {
	client   aws.SQSAPI
	queueURL string
}

// NewPublisher returns a Publisher bound to a queue URL.
func NewPublisher(client aws.SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		client:   client,
		queueURL: queueURL,
	}
}

// Enqueue sends a reconciliation job, delivered after delay (used for retry
// backoff; zero for fresh ingestions). The dedup_key attribute carries the
// job id so duplicate publishes from the same ingestion attempt can be
// identified downstream.
func (p *Publisher) Enqueue(ctx context.Context, job Job, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	bodyStr := string(body)

	input := &sqs.SendMessageInput{
		QueueUrl:    &p.queueURL,
		MessageBody: &bodyStr,
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"dedup_key":      stringAttr(job.JobID),
			"correlation_id": stringAttr(job.CorrelationID),
			"source_system":  stringAttr(job.SourceSystem),
		},
	}
	if delay > 0 {
		// SQS caps DelaySeconds at 900; the retry schedule stays well under it.
		input.DelaySeconds = int32(delay / time.Second)
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func stringAttr(v string) sqstypes.MessageAttributeValue {
	dataType := "String"
	return sqstypes.MessageAttributeValue{
		DataType:    &dataType,
		StringValue: &v,
	}
}
