package dynamo_test

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type fakeDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue

	puts int
	err  error

	// beforePut runs once before the next conditional put is evaluated.
	beforePut func()
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: make(map[string]map[string]map[string]types.AttributeValue)}
}

func keyOf(item map[string]types.AttributeValue) string {
	if s, ok := item["ReportId"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) table(name *string) map[string]map[string]types.AttributeValue {
	t, ok := f.tables[aws.ToString(name)]
	if !ok {
		t = make(map[string]map[string]types.AttributeValue)
		f.tables[aws.ToString(name)] = t
	}
	return t
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.table(params.TableName)[keyOf(params.Key)]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	hook := f.beforePut
	f.beforePut = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.puts++

	table := f.table(params.TableName)
	key := keyOf(params.Item)
	existing, exists := table[key]

	switch aws.ToString(params.ConditionExpression) {
	case "":
	case "attribute_not_exists(ReportId)":
		if exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	case "Version = :version":
		want := params.ExpressionAttributeValues[":version"].(*types.AttributeValueMemberN).Value
		got, ok := existing["Version"].(*types.AttributeValueMemberN)
		if !exists || !ok || got.Value != want {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("version mismatch")}
		}
	case "attribute_not_exists(Version) OR Version = :version":
		if !exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}
		}
		if got, ok := existing["Version"].(*types.AttributeValueMemberN); ok {
			want := params.ExpressionAttributeValues[":version"].(*types.AttributeValueMemberN).Value
			if got.Value != want {
				return nil, &types.ConditionalCheckFailedException{Message: aws.String("version mismatch")}
			}
		}
	default:
		return nil, errors.New("unsupported condition expression")
	}

	table[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	delete(f.table(params.TableName), keyOf(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}
