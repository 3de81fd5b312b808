package statedao

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/savaki/ddb/v2"
	apperrors "github.com/savaki/campus-portal/internal/errors"
)

const statePrefix = "state"

// PK represents the partition key: state/{sha256(state)}
// Raw state tokens are never stored.
type PK string

// NewPK creates a partition key from a state token
func NewPK(state string) PK {
	sum := sha256.Sum256([]byte(state))
	return PK(fmt.Sprintf("%s/%s", statePrefix, hex.EncodeToString(sum[:])))
}

// String returns the string representation
func (pk PK) String() string {
	return string(pk)
}

// Record represents a consumed oauth state
type Record struct {
	PK         PK    `ddb:"hash" dynamodbav:"pk"` // state/{digest}
	RecordedAt int64 `dynamodbav:"recorded_at"`   // Unix timestamp of the callback
	TTL        int64 `dynamodbav:"ttl"`           // Unix timestamp for DynamoDB TTL expiry
}

// DAO provides data access operations for consumed oauth states
type DAO struct {
	client    *dynamodb.Client
	tableName string
	table     *ddb.Table
	now       func() time.Time
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		client:    client,
		tableName: tableName,
		table:     table,
		now:       time.Now,
	}
}

// Record marks state as consumed. It returns ErrStateReplayed if the state
// was recorded before and has not yet expired.
func (d *DAO) Record(ctx context.Context, state string, ttl time.Duration) error {
	now := d.now()
	pk := NewPK(state)

	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item: map[string]types.AttributeValue{
			"pk":          &types.AttributeValueMemberS{Value: pk.String()},
			"recorded_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			"ttl":         &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttl).Unix(), 10)},
		},
		// an item past its ttl may linger until DynamoDB reaps it
		ConditionExpression: aws.String("attribute_not_exists(pk) OR #ttl < :now"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return apperrors.ErrStateReplayed
		}
		return fmt.Errorf("failed to record state: %w", err)
	}

	return nil
}

// Find retrieves a consumed state record
// Returns nil if not found
func (d *DAO) Find(ctx context.Context, state string) (*Record, error) {
	var record Record

	err := d.table.Get(NewPK(state).String()).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	if record.PK == "" {
		return nil, nil
	}

	return &record, nil
}

// Delete removes a state record
func (d *DAO) Delete(ctx context.Context, state string) error {
	err := d.table.Delete(NewPK(state).String()).RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// CreateTable creates the ledger table unless it already exists. DynamoDB
// TTL on the ttl attribute must be enabled separately.
func (d *DAO) CreateTable(ctx context.Context) error {
	if err := d.table.CreateTableIfNotExists(ctx); err != nil {
		return fmt.Errorf("failed to create table %s: %w", d.tableName, err)
	}
	return nil
}
