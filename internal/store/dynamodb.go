// Package store persists experiment records and per-question metrics in
// DynamoDB.
package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/haasonsaas/ragbench/internal/experiment"
)

// maxBatchSize is DynamoDB's BatchWriteItem item limit per call.
const maxBatchSize = 25

// dynamoAPI is the subset of the DynamoDB client the stores use.
// Narrowed to an interface so tests can substitute a fake.
type dynamoAPI interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// NewClient creates a DynamoDB client for the given region.
func NewClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("store: load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

// MetricsStore writes and queries per-question metrics records.
type MetricsStore struct {
	client    dynamoAPI
	table     string
	indexName string
}

// NewMetricsStore creates a metrics store over the given table. indexName is
// the optional GSI keyed by experiment_id used for rollup queries.
func NewMetricsStore(client dynamoAPI, table, indexName string) *MetricsStore {
	return &MetricsStore{client: client, table: table, indexName: indexName}
}

// BatchWrite persists metrics records with BatchWriteItem, splitting into
// chunks of at most 25 items. Any write failure propagates to the caller.
func (s *MetricsStore) BatchWrite(ctx context.Context, records []experiment.QuestionMetrics) error {
	for start := 0; start < len(records); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(records) {
			end = len(records)
		}

		requests := make([]types.WriteRequest, 0, end-start)
		for _, record := range records[start:end] {
			item, err := attributevalue.MarshalMap(record)
			if err != nil {
				return fmt.Errorf("store: marshal metrics record: %w", err)
			}
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		_, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.table: requests},
		})
		if err != nil {
			return fmt.Errorf("store: batch write %d records: %w", end-start, err)
		}
	}
	return nil
}

// QueryByExperiment returns all metrics records for one experiment. When the
// store was built with a GSI name, the query runs against that index.
func (s *MetricsStore) QueryByExperiment(ctx context.Context, experimentID string) ([]experiment.QuestionMetrics, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("experiment_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: experimentID},
		},
	}
	if s.indexName != "" {
		input.IndexName = aws.String(s.indexName)
	}

	var records []experiment.QuestionMetrics
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("store: query metrics for %s: %w", experimentID, err)
		}
		page := make([]experiment.QuestionMetrics, 0, len(out.Items))
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("store: unmarshal metrics: %w", err)
		}
		records = append(records, page...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return records, nil
}

// ExperimentStore reads and updates experiment records keyed by id.
type ExperimentStore struct {
	client dynamoAPI
	table  string
}

// NewExperimentStore creates an experiment store over the given table.
func NewExperimentStore(client dynamoAPI, table string) *ExperimentStore {
	return &ExperimentStore{client: client, table: table}
}

// Get reads one experiment record. The second return value reports whether
// the record exists.
func (s *ExperimentStore) Get(ctx context.Context, id string) (*experiment.Record, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("store: get experiment %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	var record experiment.Record
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, false, fmt.Errorf("store: unmarshal experiment %s: %w", id, err)
	}
	return &record, true, nil
}

// Update applies a keyed field update to the experiment record. Values are
// encoded with EncodeAttribute, so decimal values persist as DynamoDB
// numbers without float round-tripping.
func (s *ExperimentStore) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	expr := "SET "
	names := make(map[string]string, len(fields))
	values := make(map[string]types.AttributeValue, len(fields))
	i := 0
	for name, value := range fields {
		placeholder := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		if i > 0 {
			expr += ", "
		}
		expr += placeholder + " = " + valueKey

		names[placeholder] = name
		encoded, err := EncodeAttribute(value)
		if err != nil {
			return fmt.Errorf("store: encode field %s: %w", name, err)
		}
		values[valueKey] = encoded
		i++
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("store: update experiment %s: %w", id, err)
	}
	return nil
}
