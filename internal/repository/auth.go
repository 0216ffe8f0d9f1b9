package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"finbot/internal/domain"
)

const (
	skAuthorization = "AUTH"
	skSession       = "SESSION"
)

// FindAuthorizedNumber returns the granular authorization of a phone number.
func (c *Client) FindAuthorizedNumber(ctx context.Context, phone string) (domain.AuthorizedNumber, bool, error) {
	item, err := c.get(ctx, numberPK(phone), skAuthorization)
	if err != nil {
		return domain.AuthorizedNumber{}, false, fmt.Errorf("repository: FindAuthorizedNumber: %w", err)
	}
	if item == nil {
		return domain.AuthorizedNumber{}, false, nil
	}
	userID, err := strAttr(item, "userId")
	if err != nil {
		return domain.AuthorizedNumber{}, false, fmt.Errorf("repository: FindAuthorizedNumber decode: %w", err)
	}
	return domain.AuthorizedNumber{
		Phone:       phone,
		UserID:      userID,
		Locale:      optStr(item, "locale"),
		Permissions: itemToPermissions(item),
	}, true, nil
}

// FindLegacySession returns the pre-granular login of a phone number.
func (c *Client) FindLegacySession(ctx context.Context, phone string) (domain.LegacySession, bool, error) {
	item, err := c.get(ctx, numberPK(phone), skSession)
	if err != nil {
		return domain.LegacySession{}, false, fmt.Errorf("repository: FindLegacySession: %w", err)
	}
	if item == nil {
		return domain.LegacySession{}, false, nil
	}
	userID, err := strAttr(item, "userId")
	if err != nil {
		return domain.LegacySession{}, false, fmt.Errorf("repository: FindLegacySession decode: %w", err)
	}
	return domain.LegacySession{Phone: phone, UserID: userID, Locale: optStr(item, "locale")}, true, nil
}

// DeleteLegacySession logs a phone number out. It reports whether a session
// existed.
func (c *Client) DeleteLegacySession(ctx context.Context, phone string) (bool, error) {
	out, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(c.tableName),
		Key:          key(numberPK(phone), skSession),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("repository: DeleteLegacySession: %w", err)
	}
	return out != nil && len(out.Attributes) > 0, nil
}

// itemToPermissions decodes the optional "permissions" map. A record without
// one has no granular permissions.
func itemToPermissions(item map[string]types.AttributeValue) *domain.Permissions {
	m, ok := item["permissions"].(*types.AttributeValueMemberM)
	if !ok {
		return nil
	}
	flag := func(name string) bool {
		b := optBool(m.Value, name)
		return b != nil && *b
	}
	return &domain.Permissions{
		CanView:          flag("can_view"),
		CanAdd:           flag("can_add"),
		CanEdit:          flag("can_edit"),
		CanDelete:        flag("can_delete"),
		CanManageBudgets: flag("can_manage_budgets"),
		CanViewReports:   flag("can_view_reports"),
	}
}
