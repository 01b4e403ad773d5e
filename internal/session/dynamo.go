package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/wolfman30/autoparts-voice-agent/internal/dialogue"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type sessionItem struct {
	CallID    string `dynamodbav:"callId"`
	Version   int64  `dynamodbav:"version"`
	Step      string `dynamodbav:"step"`
	State     string `dynamodbav:"state"`
	UpdatedAt string `dynamodbav:"updatedAt"`
	ExpiresAt int64  `dynamodbav:"expiresAt,omitempty"`
}

// DynamoStore persists sessions in a DynamoDB table keyed by callId, using a
// conditional put on the version attribute.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

func NewDynamoStore(client dynamoAPI, tableName string, ttl time.Duration) *DynamoStore {
	if client == nil {
		panic("session: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("session: table name cannot be empty")
	}
	return &DynamoStore{client: client, tableName: tableName, ttl: ttl, now: time.Now}
}

func (s *DynamoStore) key(callID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"callId": &types.AttributeValueMemberS{Value: callID},
	}
}

func (s *DynamoStore) Get(ctx context.Context, callID string) (*dialogue.ConversationState, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(callID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("session: failed to fetch session: %w", err)
	}
	if out.Item == nil {
		return dialogue.NewConversationState(callID), nil
	}

	var item sessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("session: failed to decode session: %w", err)
	}
	// DynamoDB TTL deletion lags; treat expired items as absent.
	if item.ExpiresAt > 0 && s.now().Unix() > item.ExpiresAt {
		state := dialogue.NewConversationState(callID)
		state.Version = item.Version
		return state, nil
	}
	return decodeState([]byte(item.State), item.Version)
}

func (s *DynamoStore) Put(ctx context.Context, state *dialogue.ConversationState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	next := state.Version + 1
	item := sessionItem{
		CallID:    state.CallID,
		Version:   next,
		Step:      string(state.Step),
		State:     string(data),
		UpdatedAt: now.Format(time.RFC3339Nano),
	}
	if s.ttl > 0 {
		item.ExpiresAt = now.Add(s.ttl).Unix()
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("session: failed to marshal session: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}
	if state.Version == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(callId)")
	} else {
		input.ConditionExpression = aws.String("version = :expected")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(state.Version, 10)},
		}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConflict
		}
		return fmt.Errorf("session: failed to persist session: %w", err)
	}
	state.Version = next
	return nil
}

func (s *DynamoStore) Delete(ctx context.Context, callID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(callID),
	})
	if err != nil {
		return fmt.Errorf("session: failed to delete session: %w", err)
	}
	return nil
}
