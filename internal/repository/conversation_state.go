package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"finbot/internal/convstate"
	"finbot/internal/domain"
)

const skState = "STATE"

// ConversationStates is a convstate.Store kept in the table, for deployments
// where consecutive messages may land on different instances. Expiry is
// checked on read; the DynamoDB ttl attribute only reclaims storage.
type ConversationStates struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time
}

var _ convstate.Store = (*ConversationStates)(nil)

// NewConversationStates creates the table-backed state store.
func NewConversationStates(client *Client, ttl time.Duration) (*ConversationStates, error) {
	if client == nil {
		return nil, errors.New("repository: client must not be nil")
	}
	if ttl <= 0 {
		ttl = convstate.TTL
	}
	return &ConversationStates{client: client, ttl: ttl, now: client.now}, nil
}

func convPK(conversant string) string {
	return "CONV#" + conversant
}

// Put stores pc, replacing whatever the conversant had pending.
func (s *ConversationStates) Put(ctx context.Context, conversant string, pc domain.PendingContext) error {
	kind, payload, err := domain.MarshalContext(pc)
	if err != nil {
		return fmt.Errorf("repository: PutState: %w", err)
	}
	expiresAt := convstate.ExpiresAt(pc, s.ttl, s.now())
	item := key(convPK(conversant), skState)
	item["kind"] = str(string(kind))
	item["payload"] = str(string(payload))
	item["expiresAt"] = timestamp(expiresAt)
	item["ttl"] = num(expiresAt.Unix())
	_, err = s.client.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.client.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: PutState: %w", err)
	}
	return nil
}

// Get returns the live pending context of conversant.
func (s *ConversationStates) Get(ctx context.Context, conversant string) (domain.PendingContext, bool, error) {
	item, err := s.client.get(ctx, convPK(conversant), skState)
	if err != nil {
		return nil, false, fmt.Errorf("repository: GetState: %w", err)
	}
	return s.decode(item)
}

// TakeAndClear removes and returns the pending context in one call.
func (s *ConversationStates) TakeAndClear(ctx context.Context, conversant string) (domain.PendingContext, bool, error) {
	out, err := s.client.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.client.tableName),
		Key:          key(convPK(conversant), skState),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, false, fmt.Errorf("repository: TakeState: %w", err)
	}
	if out == nil {
		return nil, false, nil
	}
	return s.decode(out.Attributes)
}

// Clear drops the pending context, if any.
func (s *ConversationStates) Clear(ctx context.Context, conversant string) error {
	_, err := s.client.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.client.tableName),
		Key:       key(convPK(conversant), skState),
	})
	if err != nil {
		return fmt.Errorf("repository: ClearState: %w", err)
	}
	return nil
}

// Has reports whether conversant has a live pending context.
func (s *ConversationStates) Has(ctx context.Context, conversant string) (bool, error) {
	_, ok, err := s.Get(ctx, conversant)
	return ok, err
}

func (s *ConversationStates) decode(item map[string]types.AttributeValue) (domain.PendingContext, bool, error) {
	if len(item) == 0 {
		return nil, false, nil
	}
	expiresAt, err := timeAttr(item, "expiresAt")
	if err != nil {
		return nil, false, fmt.Errorf("repository: decode state: %w", err)
	}
	if convstate.Expired(expiresAt, s.now()) {
		return nil, false, nil
	}
	kind, err := strAttr(item, "kind")
	if err != nil {
		return nil, false, fmt.Errorf("repository: decode state: %w", err)
	}
	payload, err := strAttr(item, "payload")
	if err != nil {
		return nil, false, fmt.Errorf("repository: decode state: %w", err)
	}
	pc, err := domain.UnmarshalContext(domain.ContextKind(kind), []byte(payload))
	if err != nil {
		return nil, false, fmt.Errorf("repository: decode state: %w", err)
	}
	return pc, true, nil
}
