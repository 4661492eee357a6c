package s3

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/gmmseg/modelstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDDBClient is an in-memory DynamoDB mock.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue // model_id:version -> item

	// afterQuery runs after each Query, before the caller sees the
	// result. Used to simulate a competing writer.
	afterQuery func()
}

func (m *mockDDBClient) insert(modelID, version, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[modelID+":"+version] = map[string]types.AttributeValue{
		"model_id":      &types.AttributeValueMemberS{Value: modelID},
		"version":       &types.AttributeValueMemberN{Value: version},
		"snapshot_name": &types.AttributeValueMemberS{Value: name},
	}
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func (m *mockDDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	modelID := params.Item["model_id"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := modelID + ":" + version

	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	modelID := params.ExpressionAttributeValues[":id"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["model_id"].(*types.AttributeValueMemberS).Value == modelID {
			items = append(items, item)
		}
	}

	// Sort descending by numeric version. Versions in these tests stay
	// single-digit so string comparison is sufficient.
	for i := 0; i < len(items)-1; i++ {
		for j := i + 1; j < len(items); j++ {
			vi := items[i]["version"].(*types.AttributeValueMemberN).Value
			vj := items[j]["version"].(*types.AttributeValueMemberN).Value
			if vi < vj {
				items[i], items[j] = items[j], items[i]
			}
		}
	}

	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}

	m.mu.RUnlock()
	if m.afterQuery != nil {
		m.afterQuery()
	}
	m.mu.RLock()

	return &dynamodb.QueryOutput{Items: items}, nil
}

func TestRegistry_LatestEmpty(t *testing.T) {
	reg := NewRegistry(newMockDDBClient(), "models")

	_, _, err := reg.Latest(context.Background(), "liver-ct")
	assert.True(t, errors.Is(err, modelstore.ErrNotFound))
}

func TestRegistry_CommitAndLatest(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMockDDBClient(), "models")

	v1, err := reg.Commit(ctx, "liver-ct", "snapshots/a.gmsn")
	require.NoError(t, err)
	assert.EqualValues(t, 1, v1)

	v2, err := reg.Commit(ctx, "liver-ct", "snapshots/b.gmsn")
	require.NoError(t, err)
	assert.EqualValues(t, 2, v2)

	version, name, err := reg.Latest(ctx, "liver-ct")
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)
	assert.Equal(t, "snapshots/b.gmsn", name)
}

func TestRegistry_ModelsAreIndependent(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMockDDBClient(), "models")

	_, err := reg.Commit(ctx, "liver-ct", "a.gmsn")
	require.NoError(t, err)

	_, _, err = reg.Latest(ctx, "brain-mr")
	assert.True(t, errors.Is(err, modelstore.ErrNotFound))
}

func TestRegistry_ConcurrentCommitDetected(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	reg := NewRegistry(ddb, "models")

	// A competing writer takes version 1 after the registry reads the
	// latest version but before its conditional write lands.
	ddb.afterQuery = func() {
		ddb.afterQuery = nil
		ddb.insert("liver-ct", "1", "racer.gmsn")
	}

	_, err := reg.Commit(ctx, "liver-ct", "loser.gmsn")
	assert.ErrorIs(t, err, ErrConcurrentCommit)

	version, name, err := reg.Latest(ctx, "liver-ct")
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)
	assert.Equal(t, "racer.gmsn", name)
}
