package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"finbot/internal/domain"
)

const skPattern = "PATTERN#"

// FindPattern returns the learned pattern stored for exactly pattern.
func (c *Client) FindPattern(ctx context.Context, userID, pattern string) (domain.LearnedPattern, bool, error) {
	item, err := c.get(ctx, userPK(userID), skPattern+pattern)
	if err != nil {
		return domain.LearnedPattern{}, false, fmt.Errorf("repository: FindPattern: %w", err)
	}
	if item == nil {
		return domain.LearnedPattern{}, false, nil
	}
	lp, err := itemToPattern(item)
	if err != nil {
		return domain.LearnedPattern{}, false, fmt.Errorf("repository: FindPattern decode: %w", err)
	}
	lp.UserID = userID
	lp.Pattern = pattern
	return lp, true, nil
}

// SavePattern creates or replaces a learned pattern, keeping its usage count.
func (c *Client) SavePattern(ctx context.Context, lp domain.LearnedPattern) error {
	entities, err := json.Marshal(lp.Entities)
	if err != nil {
		return fmt.Errorf("repository: SavePattern marshal: %w", err)
	}
	_, err = c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key:       key(userPK(lp.UserID), skPattern+lp.Pattern),
		UpdateExpression: aws.String(
			"SET #action = :action, entities = :entities, confidence = :confidence, updatedAt = :updatedAt, " +
				"usageCount = if_not_exists(usageCount, :zero)"),
		ExpressionAttributeNames: map[string]string{"#action": "action"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":action":     str(string(lp.Action)),
			":entities":   str(string(entities)),
			":confidence": &types.AttributeValueMemberN{Value: strconv.FormatFloat(lp.Confidence, 'f', -1, 64)},
			":updatedAt":  timestamp(c.now()),
			":zero":       num(0),
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SavePattern: %w", err)
	}
	return nil
}

// IncrementPatternUsage counts one more use of a learned pattern.
func (c *Client) IncrementPatternUsage(ctx context.Context, userID, pattern string) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(c.tableName),
		Key:              key(userPK(userID), skPattern+pattern),
		UpdateExpression: aws.String("ADD usageCount :one SET updatedAt = :updatedAt"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":       num(1),
			":updatedAt": timestamp(c.now()),
		},
	})
	if err != nil {
		return fmt.Errorf("repository: IncrementPatternUsage: %w", err)
	}
	return nil
}

func itemToPattern(item map[string]types.AttributeValue) (domain.LearnedPattern, error) {
	action, err := strAttr(item, "action")
	if err != nil {
		return domain.LearnedPattern{}, err
	}
	var entities domain.Entities
	if raw := optStr(item, "entities"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &entities); err != nil {
			return domain.LearnedPattern{}, fmt.Errorf("repository: parse attribute %q: %w", "entities", err)
		}
	}
	var confidence float64
	if n, ok := item["confidence"].(*types.AttributeValueMemberN); ok {
		confidence, _ = strconv.ParseFloat(n.Value, 64)
	}
	usage, _ := intAttr(item, "usageCount")
	updated, _ := timeAttr(item, "updatedAt")
	return domain.LearnedPattern{
		Action:     domain.Action(action),
		Entities:   entities,
		Confidence: confidence,
		UsageCount: usage,
		UpdatedAt:  updated,
	}, nil
}
