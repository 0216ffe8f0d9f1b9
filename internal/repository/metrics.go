package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"finbot/internal/domain"
)

const metricTTL = 90 * 24 * time.Hour

// PutMetric appends a parsing metric. Rows expire after 90 days.
func (c *Client) PutMetric(ctx context.Context, m domain.ParsingMetric) error {
	if m.ID == "" {
		return fmt.Errorf("repository: PutMetric: id is required")
	}
	created := m.CreatedAt
	if created.IsZero() {
		created = c.now()
	}
	item := key("METRIC#"+m.Conversant, created.UTC().Format(time.RFC3339Nano)+"#"+m.ID)
	item["conversant"] = str(m.Conversant)
	item["message"] = str(m.Message)
	item["strategy"] = str(m.Strategy)
	item["action"] = str(string(m.Action))
	item["confidence"] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(m.Confidence, 'f', -1, 64)}
	item["success"] = boolean(m.Success)
	item["durationMs"] = num(m.Duration.Milliseconds())
	item["createdAt"] = timestamp(created)
	item["ttl"] = num(created.Add(metricTTL).Unix())
	if m.UserID != "" {
		item["userId"] = str(m.UserID)
	}
	if m.FailureReason != "" {
		item["failureReason"] = str(m.FailureReason)
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: PutMetric: %w", err)
	}
	return nil
}
