package eventlog

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a small in-memory DynamoDB fake keyed by event_id, covering
// only what the store's unit tests exercise.
type simpleMock struct {
	mu    sync.Mutex
	table map[string]map[string]types.AttributeValue
}

func newSimpleMock() *simpleMock {
	return &simpleMock{table: map[string]map[string]types.AttributeValue{}}
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keyAttr, ok := params.Item["event_id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("missing event_id")
	}
	if params.ConditionExpression != nil && strings.Contains(*params.ConditionExpression, "attribute_not_exists(event_id)") {
		if _, exists := m.table[keyAttr.Value]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.table[keyAttr.Value] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keyAttr, ok := params.Key["event_id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("missing event_id")
	}
	item, found := m.table[keyAttr.Value]
	if !found {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *simpleMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keyAttr, ok := params.Key["event_id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("missing event_id")
	}
	item, found := m.table[keyAttr.Value]
	if !found {
		return nil, errors.New("item not found")
	}
	// conditional attach: job_id must be absent
	if params.ConditionExpression != nil && strings.Contains(*params.ConditionExpression, "attribute_not_exists(job_id)") {
		if _, set := item["job_id"]; set {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	if v, found := params.ExpressionAttributeValues[":j"]; found {
		item["job_id"] = v
	}
	if v, found := params.ExpressionAttributeValues[":p"]; found {
		item["processed"] = v
	}
	m.table[keyAttr.Value] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}
