package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hotvideos/video-info-service/internal/core/domain/video"
	"github.com/hotvideos/video-info-service/internal/core/ports"
)

// API is the subset of the DynamoDB client used by the store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// VideoInfoStore reads ranked video info items from a DynamoDB table keyed by sort type.
type VideoInfoStore struct {
	api            API
	table          string
	keyAttribute   string
	valueAttribute string
}

var _ ports.VideoInfoStore = (*VideoInfoStore)(nil)

func NewVideoInfoStore(api API, table, keyAttribute, valueAttribute string) *VideoInfoStore {
	return &VideoInfoStore{api: api, table: table, keyAttribute: keyAttribute, valueAttribute: valueAttribute}
}

func (s *VideoInfoStore) Name() string { return "dynamodb" }

// Fetch issues a GetItem for key and returns the value attribute. String and binary
// attributes are accepted.
func (s *VideoInfoStore) Fetch(ctx context.Context, key video.CacheKey) ([]byte, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			s.keyAttribute: &types.AttributeValueMemberS{Value: key.String()},
		},
		ProjectionExpression:     aws.String("#v"),
		ExpressionAttributeNames: map[string]string{"#v": s.valueAttribute},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dynamodb get item %q: %w", video.ErrBackendUnavailable, key, err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, fmt.Errorf("%w: no item for %q in %s", video.ErrNotFound, key, s.table)
	}

	switch v := out.Item[s.valueAttribute].(type) {
	case *types.AttributeValueMemberS:
		return []byte(v.Value), nil
	case *types.AttributeValueMemberB:
		return v.Value, nil
	case nil:
		return nil, fmt.Errorf("%w: item %q has no %s attribute", video.ErrNotFound, key, s.valueAttribute)
	default:
		return nil, fmt.Errorf("%w: item %q attribute %s has unsupported type %T", video.ErrBackendUnavailable, key, s.valueAttribute, v)
	}
}

// Ping describes the table, which fails when the table is missing or credentials are rejected.
func (s *VideoInfoStore) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	return err
}
