package health

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoStore is the production Provider Health Store: an AWS DynamoDB
// table keyed by the partition key "providerRegion" ("<provider>#<region>"),
// with best-effort conditional writes used to reduce duplicate HALF_OPEN
// probes. Grounded on the providers package's Bedrock AWS SDK client
// construction (providers.NewBedrock), generalized from bedrockruntime to
// dynamodb.
type DynamoStore struct {
	client *dynamodb.Client
	table  string
}

// NewDynamoStore creates a DynamoDB-backed Provider Health Store for the
// given table name. region defaults to us-east-1, matching
// providers.NewBedrock's default.
func NewDynamoStore(ctx context.Context, table, region string) (*DynamoStore, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("health: loading AWS config: %w", err)
	}
	return &DynamoStore{
		client: dynamodb.NewFromConfig(cfg),
		table:  table,
	}, nil
}

// dynamoRecord is the DynamoDB item shape: providerRegion is the partition
// key, ttl is the epoch-seconds TTL attribute the router contract names explicitly.
type dynamoRecord struct {
	ProviderRegion           string `dynamodbav:"providerRegion"`
	Provider                 string `dynamodbav:"provider"`
	Region                   string `dynamodbav:"region"`
	Status                   string `dynamodbav:"status"`
	ConsecutiveFailures      uint32 `dynamodbav:"consecutiveFailures"`
	CurrentHalfOpenSuccesses uint32 `dynamodbav:"currentHalfOpenSuccesses"`
	TotalFailures            uint64 `dynamodbav:"totalFailures"`
	TotalSuccesses           uint64 `dynamodbav:"totalSuccesses"`
	TotalLatencyMs           uint64 `dynamodbav:"totalLatencyMs"`
	LastFailureTimestamp     *int64 `dynamodbav:"lastFailureTimestamp,omitempty"`
	OpenedTimestamp          *int64 `dynamodbav:"openedTimestamp,omitempty"`
	LastStateChangeTimestamp int64  `dynamodbav:"lastStateChangeTimestamp"`
	TTL                      int64  `dynamodbav:"ttl"`
}

func toDynamoRecord(r Record) dynamoRecord {
	d := dynamoRecord{
		ProviderRegion:           r.Key(),
		Provider:                 r.Provider,
		Region:                   r.Region,
		Status:                   string(r.Status),
		ConsecutiveFailures:      r.ConsecutiveFailures,
		CurrentHalfOpenSuccesses: r.CurrentHalfOpenSuccesses,
		TotalFailures:            r.TotalFailures,
		TotalSuccesses:           r.TotalSuccesses,
		TotalLatencyMs:           r.TotalLatencyMs,
		LastStateChangeTimestamp: r.LastStateChangeTimestamp.Unix(),
		TTL:                      r.TTL.Unix(),
	}
	if r.LastFailureTimestamp != nil {
		v := r.LastFailureTimestamp.Unix()
		d.LastFailureTimestamp = &v
	}
	if r.OpenedTimestamp != nil {
		v := r.OpenedTimestamp.Unix()
		d.OpenedTimestamp = &v
	}
	return d
}

func fromDynamoRecord(d dynamoRecord) Record {
	r := Record{
		Provider:                 d.Provider,
		Region:                   d.Region,
		Status:                   Status(d.Status),
		ConsecutiveFailures:      d.ConsecutiveFailures,
		CurrentHalfOpenSuccesses: d.CurrentHalfOpenSuccesses,
		TotalFailures:            d.TotalFailures,
		TotalSuccesses:           d.TotalSuccesses,
		TotalLatencyMs:           d.TotalLatencyMs,
		LastStateChangeTimestamp: time.Unix(d.LastStateChangeTimestamp, 0).UTC(),
		TTL:                      time.Unix(d.TTL, 0).UTC(),
	}
	if d.LastFailureTimestamp != nil {
		t := time.Unix(*d.LastFailureTimestamp, 0).UTC()
		r.LastFailureTimestamp = &t
	}
	if d.OpenedTimestamp != nil {
		t := time.Unix(*d.OpenedTimestamp, 0).UTC()
		r.OpenedTimestamp = &t
	}
	return r
}

// Get implements Store.
func (d *DynamoStore) Get(ctx context.Context, key string) (Record, bool, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			"providerRegion": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("health: get item %q: %w", key, err)
	}
	if out.Item == nil {
		return Record{}, false, nil
	}

	var item dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return Record{}, false, fmt.Errorf("health: decode item %q: %w", key, err)
	}
	return fromDynamoRecord(item), true, nil
}

// Put implements Store.
func (d *DynamoStore) Put(ctx context.Context, record Record) error {
	item, err := attributevalue.MarshalMap(toDynamoRecord(record))
	if err != nil {
		return fmt.Errorf("health: encode record %q: %w", record.Key(), err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("health: put item %q: %w", record.Key(), err)
	}
	return nil
}

// PutIfVersion implements Store using a DynamoDB ConditionExpression on the
// stored status; conditional writes reduce duplicate HALF_OPEN probes but
// are not required for correctness. A condition failure is reported as
// ok=false, not an error: the caller falls back to treating it as a lost race.
func (d *DynamoStore) PutIfVersion(ctx context.Context, record Record, expectStatus Status) (bool, error) {
	item, err := attributevalue.MarshalMap(toDynamoRecord(record))
	if err != nil {
		return false, fmt.Errorf("health: encode record %q: %w", record.Key(), err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	}
	if expectStatus == "" {
		input.ConditionExpression = aws.String("attribute_not_exists(providerRegion)")
	} else {
		input.ConditionExpression = aws.String("#status = :expectStatus")
		input.ExpressionAttributeNames = map[string]string{"#status": "status"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expectStatus": &types.AttributeValueMemberS{Value: string(expectStatus)},
		}
	}

	_, err = d.client.PutItem(ctx, input)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("health: conditional put item %q: %w", record.Key(), err)
	}
	return true, nil
}

func isConditionalCheckFailed(err error) bool {
	for e := err; e != nil; e = unwrap(e) {
		if _, ok := e.(*types.ConditionalCheckFailedException); ok {
			return true
		}
	}
	return false
}

func unwrap(err error) error {
	type unwrapper interface {
		Unwrap() error
	}
	if u, ok := err.(unwrapper); ok {
		return u.Unwrap()
	}
	return nil
}
