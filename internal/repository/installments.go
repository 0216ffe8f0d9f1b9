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

const skPlan = "PLAN#"

// TransactWriteItems accepts at most this many actions.
const maxTransactItems = 100

func planSK(planID string) string {
	return skPlan + planID
}

func paymentSK(planID string, number int) string {
	return fmt.Sprintf("%s%s#PAY#%03d", skPlan, planID, number)
}

// CreateInstallmentPlan writes the plan and all of its payments atomically.
func (c *Client) CreateInstallmentPlan(ctx context.Context, plan domain.InstallmentPlan, payments []domain.InstallmentPayment) error {
	if len(payments)+1 > maxTransactItems {
		return fmt.Errorf("repository: CreateInstallmentPlan: %d payments exceed a single transaction", len(payments))
	}
	items := make([]types.TransactWriteItem, 0, len(payments)+1)
	items = append(items, types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(c.tableName),
		Item:                planItem(plan),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	}})
	for _, p := range payments {
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName: aws.String(c.tableName),
			Item:      paymentItem(plan.UserID, p),
		}})
	}
	if _, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("repository: CreateInstallmentPlan: %w", err)
	}
	return nil
}

// ListInstallmentPlans returns the plans of userID with the given status,
// oldest first. An empty status returns every plan.
func (c *Client) ListInstallmentPlans(ctx context.Context, userID string, status domain.PlanStatus) ([]domain.InstallmentPlan, error) {
	items, err := c.queryPrefix(ctx, userPK(userID), skPlan)
	if err != nil {
		return nil, fmt.Errorf("repository: ListInstallmentPlans: %w", err)
	}
	var out []domain.InstallmentPlan
	for _, item := range items {
		if optStr(item, "kind") != "plan" {
			continue
		}
		plan, err := itemToPlan(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListInstallmentPlans unmarshal: %w", err)
		}
		if status != "" && plan.Status != status {
			continue
		}
		plan.UserID = userID
		out = append(out, plan)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListInstallmentPayments returns the payments of a plan in order.
func (c *Client) ListInstallmentPayments(ctx context.Context, userID, planID string) ([]domain.InstallmentPayment, error) {
	items, err := c.queryPrefix(ctx, userPK(userID), planSK(planID)+"#PAY#")
	if err != nil {
		return nil, fmt.Errorf("repository: ListInstallmentPayments: %w", err)
	}
	out := make([]domain.InstallmentPayment, 0, len(items))
	for _, item := range items {
		p, err := itemToPayment(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListInstallmentPayments unmarshal: %w", err)
		}
		p.PlanID = planID
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// DeleteInstallmentPlan removes a plan together with its payment rows. The
// table has no foreign keys, so the cascade is one transaction.
func (c *Client) DeleteInstallmentPlan(ctx context.Context, userID, planID string) error {
	payments, err := c.queryPrefix(ctx, userPK(userID), planSK(planID)+"#PAY#")
	if err != nil {
		return fmt.Errorf("repository: DeleteInstallmentPlan query: %w", err)
	}
	items := []types.TransactWriteItem{{Delete: &types.Delete{
		TableName:           aws.String(c.tableName),
		Key:                 key(userPK(userID), planSK(planID)),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}}}
	for _, p := range payments {
		sk, err := strAttr(p, "SK")
		if err != nil {
			return fmt.Errorf("repository: DeleteInstallmentPlan decode: %w", err)
		}
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(c.tableName),
			Key:       key(userPK(userID), sk),
		}})
	}
	if len(items) > maxTransactItems {
		return fmt.Errorf("repository: DeleteInstallmentPlan: %d rows exceed a single transaction", len(items))
	}
	_, err = c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if conditionFailed(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("repository: DeleteInstallmentPlan: %w", err)
	}
	return nil
}

func planItem(p domain.InstallmentPlan) map[string]types.AttributeValue {
	item := key(userPK(p.UserID), planSK(p.ID))
	item["kind"] = str("plan")
	item["id"] = str(p.ID)
	item["paymentMethodId"] = str(p.PaymentMethodID)
	item["description"] = str(p.Description)
	item["category"] = str(p.Category)
	item["totalAmount"] = dec(p.TotalAmount)
	item["installmentAmount"] = dec(p.InstallmentAmount)
	item["installments"] = num(int64(p.Installments))
	item["firstDueDate"] = str(p.FirstDueDate.Format("2006-01-02"))
	item["status"] = str(string(p.Status))
	item["createdAt"] = timestamp(p.CreatedAt)
	return item
}

func itemToPlan(item map[string]types.AttributeValue) (domain.InstallmentPlan, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.InstallmentPlan{}, err
	}
	total, err := decAttr(item, "totalAmount")
	if err != nil {
		return domain.InstallmentPlan{}, err
	}
	each, err := decAttr(item, "installmentAmount")
	if err != nil {
		return domain.InstallmentPlan{}, err
	}
	n, err := intAttr(item, "installments")
	if err != nil {
		return domain.InstallmentPlan{}, err
	}
	due, _ := time.Parse("2006-01-02", optStr(item, "firstDueDate"))
	created, _ := timeAttr(item, "createdAt")
	return domain.InstallmentPlan{
		ID:                id,
		PaymentMethodID:   optStr(item, "paymentMethodId"),
		Description:       optStr(item, "description"),
		Category:          optStr(item, "category"),
		TotalAmount:       total,
		InstallmentAmount: each,
		Installments:      n,
		FirstDueDate:      due,
		Status:            domain.PlanStatus(optStr(item, "status")),
		CreatedAt:         created,
	}, nil
}

func paymentItem(userID string, p domain.InstallmentPayment) map[string]types.AttributeValue {
	item := key(userPK(userID), paymentSK(p.PlanID, p.Number))
	item["kind"] = str("payment")
	item["number"] = num(int64(p.Number))
	item["amount"] = dec(p.Amount)
	item["dueDate"] = str(p.DueDate.Format("2006-01-02"))
	item["status"] = str(string(p.Status))
	if p.TransactionID != "" {
		item["transactionId"] = str(p.TransactionID)
	}
	return item
}

func itemToPayment(item map[string]types.AttributeValue) (domain.InstallmentPayment, error) {
	n, err := intAttr(item, "number")
	if err != nil {
		return domain.InstallmentPayment{}, err
	}
	amount, err := decAttr(item, "amount")
	if err != nil {
		return domain.InstallmentPayment{}, err
	}
	due, _ := time.Parse("2006-01-02", optStr(item, "dueDate"))
	return domain.InstallmentPayment{
		Number:        n,
		Amount:        amount,
		DueDate:       due,
		Status:        domain.PaymentStatus(optStr(item, "status")),
		TransactionID: optStr(item, "transactionId"),
	}, nil
}
