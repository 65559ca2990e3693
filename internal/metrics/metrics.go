// Package metrics emits operational counters to CloudWatch. A nil Emitter
// is valid and drops everything, so callers never guard their metric calls.
package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/damlalper/concierge-ai-backend/internal/aws"
	"github.com/damlalper/concierge-ai-backend/internal/logging"
)

// Metric names emitted by the pipeline.
const (
	MetricWebhookAccepted  = "WebhookAccepted"
	MetricWebhookDuplicate = "WebhookDuplicate"
	MetricWebhookRejected  = "WebhookRejected"
	MetricJobCompleted     = "JobCompleted"
	MetricJobExhausted     = "JobExhausted"
)

// Emitter publishes counters under a single namespace.
type Emitter struct {
	client    aws.CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewEmitter returns an Emitter, or nil when namespace is empty (metrics
// disabled).
func NewEmitter(client aws.CloudWatchAPI, namespace string) *Emitter {
	if client == nil || namespace == "" {
		return nil
	}
	return &Emitter{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// Count emits a counter increment with optional dimensions. Failures are
// logged, never propagated: metric delivery must not affect the pipeline.
func (e *Emitter) Count(ctx context.Context, name string, dims map[string]string) {
	if e == nil {
		return
	}

	value := 1.0
	now := e.nowFunc()
	datum := cwtypes.MetricDatum{
		MetricName: &name,
		Value:      &value,
		Timestamp:  &now,
		Unit:       cwtypes.StandardUnitCount,
	}
	for k, v := range dims {
		k, v := k, v
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{Name: &k, Value: &v})
	}

	_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &e.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		logging.Logger().Warn().Err(err).Str("metric", name).Msg("metric emission failed")
	}
}
