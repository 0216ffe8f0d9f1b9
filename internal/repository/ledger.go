package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"finbot/internal/domain"
)

const (
	skPaymentMethod = "PM#"
	skTransaction   = "TX#"
	skPreference    = "PREF#"
	skBudget        = "BUDGET#"
)

// ListPaymentMethods returns every payment method owned by userID.
func (c *Client) ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	items, err := c.queryPrefix(ctx, userPK(userID), skPaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("repository: ListPaymentMethods: %w", err)
	}
	out := make([]domain.PaymentMethod, 0, len(items))
	for _, item := range items {
		pm, err := itemToPaymentMethod(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListPaymentMethods unmarshal: %w", err)
		}
		pm.UserID = userID
		out = append(out, pm)
	}
	return out, nil
}

// SetCreditMode stores the tracking mode of a card only while it is still
// unset. It returns how many rows were updated: 0 means another message got
// there first.
func (c *Client) SetCreditMode(ctx context.Context, userID, paymentMethodID string, credit bool) (int, error) {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       key(userPK(userID), skPaymentMethod+paymentMethodID),
		UpdateExpression:          aws.String("SET creditMode = :mode"),
		ConditionExpression:       aws.String("attribute_exists(PK) AND attribute_not_exists(creditMode)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":mode": boolean(credit)},
	})
	if conditionFailed(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("repository: SetCreditMode: %w", err)
	}
	return 1, nil
}

// UpdateCreditMode overwrites the tracking mode of a card.
func (c *Client) UpdateCreditMode(ctx context.Context, userID, paymentMethodID string, credit bool) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       key(userPK(userID), skPaymentMethod+paymentMethodID),
		UpdateExpression:          aws.String("SET creditMode = :mode"),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":mode": boolean(credit)},
	})
	if conditionFailed(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("repository: UpdateCreditMode: %w", err)
	}
	return nil
}

// AddTransaction inserts a new ledger row.
func (c *Client) AddTransaction(ctx context.Context, tx domain.Transaction) error {
	if tx.ID == "" || tx.UserID == "" {
		return fmt.Errorf("repository: AddTransaction: id and user id are required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                transactionItem(tx),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: AddTransaction: %w", err)
	}
	return nil
}

// UpdateTransaction replaces an existing ledger row.
func (c *Client) UpdateTransaction(ctx context.Context, tx domain.Transaction) error {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                transactionItem(tx),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if conditionFailed(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("repository: UpdateTransaction: %w", err)
	}
	return nil
}

// DeleteTransaction removes a ledger row.
func (c *Client) DeleteTransaction(ctx context.Context, userID, id string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       key(userPK(userID), skTransaction+id),
	})
	if err != nil {
		return fmt.Errorf("repository: DeleteTransaction: %w", err)
	}
	return nil
}

// UnlinkTransaction detaches a transaction from the installment it paid,
// keeping the transaction itself.
func (c *Client) UnlinkTransaction(ctx context.Context, userID, id string) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 key(userPK(userID), skTransaction+id),
		UpdateExpression:    aws.String("REMOVE installmentPaymentId"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if conditionFailed(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("repository: UnlinkTransaction: %w", err)
	}
	return nil
}

// ListTransactions returns the rows dated in [from, to), newest first.
func (c *Client) ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]domain.Transaction, error) {
	items, err := c.queryPrefix(ctx, userPK(userID), skTransaction)
	if err != nil {
		return nil, fmt.Errorf("repository: ListTransactions: %w", err)
	}
	var out []domain.Transaction
	for _, item := range items {
		tx, err := itemToTransaction(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListTransactions unmarshal: %w", err)
		}
		if tx.Date.Before(from) || !tx.Date.Before(to) {
			continue
		}
		tx.UserID = userID
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// FindTransactionByReadableID looks a row up by the short id shown to users.
func (c *Client) FindTransactionByReadableID(ctx context.Context, userID, readableID string) (domain.Transaction, bool, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		FilterExpression:       aws.String("readableId = :rid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     str(userPK(userID)),
			":prefix": str(skTransaction),
			":rid":    str(readableID),
		},
	})
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("repository: FindTransactionByReadableID: %w", err)
	}
	if out == nil || len(out.Items) == 0 {
		return domain.Transaction{}, false, nil
	}
	tx, err := itemToTransaction(out.Items[0])
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("repository: FindTransactionByReadableID unmarshal: %w", err)
	}
	tx.UserID = userID
	return tx, true, nil
}

// GetPreference returns the payment method learned for a category.
func (c *Client) GetPreference(ctx context.Context, userID, category string) (string, bool, error) {
	item, err := c.get(ctx, userPK(userID), skPreference+category)
	if err != nil {
		return "", false, fmt.Errorf("repository: GetPreference: %w", err)
	}
	if item == nil {
		return "", false, nil
	}
	id, err := strAttr(item, "paymentMethodId")
	if err != nil {
		return "", false, fmt.Errorf("repository: GetPreference decode: %w", err)
	}
	return id, true, nil
}

// SavePreference remembers the payment method last used for a category.
func (c *Client) SavePreference(ctx context.Context, userID, category, paymentMethodID string) error {
	item := key(userPK(userID), skPreference+category)
	item["paymentMethodId"] = str(paymentMethodID)
	item["updatedAt"] = timestamp(c.now())
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: SavePreference: %w", err)
	}
	return nil
}

// SetBudget creates or replaces the monthly limit of a category.
func (c *Client) SetBudget(ctx context.Context, b domain.Budget) error {
	item := key(userPK(b.UserID), skBudget+b.Category)
	item["category"] = str(b.Category)
	item["amount"] = dec(b.Amount)
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: SetBudget: %w", err)
	}
	return nil
}

// ListBudgets returns every budget of userID.
func (c *Client) ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error) {
	items, err := c.queryPrefix(ctx, userPK(userID), skBudget)
	if err != nil {
		return nil, fmt.Errorf("repository: ListBudgets: %w", err)
	}
	out := make([]domain.Budget, 0, len(items))
	for _, item := range items {
		category, err := strAttr(item, "category")
		if err != nil {
			return nil, fmt.Errorf("repository: ListBudgets unmarshal: %w", err)
		}
		amount, err := decAttr(item, "amount")
		if err != nil {
			return nil, fmt.Errorf("repository: ListBudgets unmarshal: %w", err)
		}
		out = append(out, domain.Budget{UserID: userID, Category: category, Amount: amount})
	}
	return out, nil
}

func itemToPaymentMethod(item map[string]types.AttributeValue) (domain.PaymentMethod, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	name, err := strAttr(item, "name")
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	typ := domain.PaymentMethodType(optStr(item, "type"))
	if typ == "" {
		typ = domain.PaymentOther
	}
	return domain.PaymentMethod{
		ID:         id,
		Name:       name,
		Type:       typ,
		CreditMode: optBool(item, "creditMode"),
	}, nil
}

func transactionItem(tx domain.Transaction) map[string]types.AttributeValue {
	item := key(userPK(tx.UserID), skTransaction+tx.ID)
	item["id"] = str(tx.ID)
	item["readableId"] = str(tx.ReadableID)
	item["type"] = str(string(tx.Type))
	item["amount"] = dec(tx.Amount)
	item["description"] = str(tx.Description)
	item["category"] = str(tx.Category)
	item["date"] = str(tx.Date.Format("2006-01-02"))
	item["createdAt"] = timestamp(tx.CreatedAt)
	if tx.PaymentMethodID != "" {
		item["paymentMethodId"] = str(tx.PaymentMethodID)
	}
	if tx.InstallmentPaymentID != "" {
		item["installmentPaymentId"] = str(tx.InstallmentPaymentID)
	}
	return item
}

func itemToTransaction(item map[string]types.AttributeValue) (domain.Transaction, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.Transaction{}, err
	}
	amount, err := decAttr(item, "amount")
	if err != nil {
		return domain.Transaction{}, err
	}
	rawDate, err := strAttr(item, "date")
	if err != nil {
		return domain.Transaction{}, err
	}
	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("repository: parse attribute %q: %w", "date", err)
	}
	created, _ := timeAttr(item, "createdAt")
	return domain.Transaction{
		ID:                   id,
		ReadableID:           optStr(item, "readableId"),
		Type:                 domain.TransactionType(optStr(item, "type")),
		Amount:               amount,
		Description:          optStr(item, "description"),
		Category:             optStr(item, "category"),
		PaymentMethodID:      optStr(item, "paymentMethodId"),
		Date:                 date,
		CreatedAt:            created,
		InstallmentPaymentID: optStr(item, "installmentPaymentId"),
	}, nil
}
