package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/damlalper/concierge-ai-backend/internal/aws"
	"github.com/damlalper/concierge-ai-backend/internal/logging"
)

// Handler processes one job. A nil return completes the job; an error sends
// it back through the retry policy. Handlers must be idempotent: SQS is
// at-least-once and a crash mid-processing redelivers the message.
type Handler func(ctx context.Context, job Job) error

// ExhaustedFunc is invoked when a job fails its final attempt. It is the
// operator-notification hook; the job is terminal after it returns.
type ExhaustedFunc func(ctx context.Context, job Job, err error)

// Consumer pulls jobs from SQS and dispatches them to a bounded pool of
// concurrent handlers.
type Consumer struct {
	client      aws.SQSAPI
	queueURL    string
	publisher   *Publisher
	policy      RetryPolicy
	concurrency int
	jobTimeout  time.Duration
	handler     Handler
	exhausted   ExhaustedFunc
}

// ConsumerConfig groups Consumer dependencies.
type ConsumerConfig struct {
	Client      aws.SQSAPI
	QueueURL    string
	Policy      RetryPolicy
	Concurrency int
	JobTimeout  time.Duration
	Handler     Handler
	Exhausted   ExhaustedFunc
}

// NewConsumer returns a configured Consumer.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Consumer{
		client:      cfg.Client,
		queueURL:    cfg.QueueURL,
		publisher:   NewPublisher(cfg.Client, cfg.QueueURL),
		policy:      cfg.Policy,
		concurrency: cfg.Concurrency,
		jobTimeout:  cfg.JobTimeout,
		handler:     cfg.Handler,
		exhausted:   cfg.Exhausted,
	}
}

// Run long-polls the queue until ctx is cancelled, keeping at most
// `concurrency` jobs in flight. In-flight jobs are drained before return.
func (c *Consumer) Run(ctx context.Context) error {
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              &c.queueURL,
			MaxNumberOfMessages:   int32(min(10, c.concurrency)),
			WaitTimeSeconds:       20,
			MessageAttributeNames: []string{"All"},
		})
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return ctx.Err()
			}
			logging.Logger().Error().Err(err).Msg("receive message failed")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range out.Messages {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return ctx.Err()
			}
			wg.Add(1)
			go func(body, receipt string) {
				defer wg.Done()
				defer func() { <-sem }()
				c.process(ctx, body, receipt)
			}(deref(msg.Body), deref(msg.ReceiptHandle))
		}
	}
}

// process runs one delivery through the handler and applies the retry policy.
func (c *Consumer) process(ctx context.Context, body, receipt string) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		// Poison message: it can never succeed, so delete instead of looping.
		logging.Logger().Error().Err(err).Str("body", body).Msg("unparseable job payload")
		c.delete(ctx, receipt)
		return
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = c.policy.MaxAttempts
	}

	log := logging.Ctx(logging.WithCorrelationID(ctx, job.CorrelationID))

	jobCtx := ctx
	if c.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, c.jobTimeout)
		defer cancel()
	}

	err := c.handler(jobCtx, job)
	if err == nil {
		c.delete(ctx, receipt)
		return
	}

	if job.Attempt < job.MaxAttempts {
		retry := job
		retry.Attempt++
		delay := c.policy.Delay(job.Attempt)
		log.Warn().Err(err).
			Str("job_id", job.JobID).
			Int("attempt", job.Attempt).
			Dur("retry_delay", delay).
			Msg("job failed, scheduling retry")
		if pubErr := c.publisher.Enqueue(ctx, retry, delay); pubErr != nil {
			// Keep the original message; SQS redelivers it after the
			// visibility timeout instead.
			log.Error().Err(pubErr).Str("job_id", job.JobID).Msg("retry enqueue failed")
			return
		}
		c.delete(ctx, receipt)
		return
	}

	log.Error().Err(err).
		Str("job_id", job.JobID).
		Str("source_system", job.SourceSystem).
		Str("request_id", job.RequestID).
		Int("attempt", job.Attempt).
		Msg("job exhausted retry budget")
	if c.exhausted != nil {
		c.exhausted(ctx, job, err)
	}
	c.delete(ctx, receipt)
}

func (c *Consumer) delete(ctx context.Context, receipt string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: &receipt,
	})
	if err != nil {
		logging.Logger().Error().Err(err).Msg("delete message failed")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
