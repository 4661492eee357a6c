package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/gmmseg/modelstore"
)

// DDBClient is the subset of the DynamoDB API the registry uses.
// *dynamodb.Client satisfies it.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrConcurrentCommit is returned when another writer committed a new
// snapshot version between Latest and Commit.
var ErrConcurrentCommit = errors.New("concurrent snapshot commit detected")

// Registry tracks the latest committed snapshot per model in DynamoDB.
//
// S3 writes lack compare-and-swap, so two fitters publishing snapshots
// for the same model could silently overwrite each other's "latest"
// pointer. The registry provides that coordination: snapshot payloads
// go to S3 under unique names, and the name of the current one is
// committed through a DynamoDB conditional write on a monotonically
// increasing version.
//
// Table schema:
//   - Partition key: model_id (string)
//   - Sort key: version (number)
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name gmmseg-models \
//	  --attribute-definitions AttributeName=model_id,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=model_id,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type Registry struct {
	client    DDBClient
	tableName string
}

// NewRegistry creates a registry backed by the given DynamoDB table.
func NewRegistry(client DDBClient, tableName string) *Registry {
	return &Registry{client: client, tableName: tableName}
}

// Latest returns the version and snapshot name of the most recent
// commit for modelID. Returns modelstore.ErrNotFound when the model has
// no commits.
func (r *Registry) Latest(ctx context.Context, modelID string) (uint64, string, error) {
	resp, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("model_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: modelID},
		},
		ScanIndexForward: aws.Bool(false), // descending: newest version first
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query registry: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", modelstore.ErrNotFound
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in registry item")
	}
	nameAttr, ok := item["snapshot_name"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid snapshot_name attribute in registry item")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse registry version: %w", err)
	}

	return version, nameAttr.Value, nil
}

// Commit records snapshotName as the next version for modelID and
// returns the committed version. The conditional write guarantees that
// at most one writer wins any given version.
func (r *Registry) Commit(ctx context.Context, modelID, snapshotName string) (uint64, error) {
	current, _, err := r.Latest(ctx, modelID)
	if err != nil && !errors.Is(err, modelstore.ErrNotFound) {
		return 0, err
	}

	next := current + 1

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"model_id":      &types.AttributeValueMemberS{Value: modelID},
			"version":       &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"snapshot_name": &types.AttributeValueMemberS{Value: snapshotName},
			"committed_at":  &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentCommit
		}
		return 0, fmt.Errorf("commit registry version: %w", err)
	}

	return next, nil
}
