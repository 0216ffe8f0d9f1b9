package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"finbot/internal/domain"
)

// fakeDynamo keeps items by PK and SK and applies puts, deletes and
// transactions. Updates are only recorded.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue

	getErr    error
	putErr    error
	updateErr error
	queryErr  error
	txErr     error

	lastUpdate *dynamodb.UpdateItemInput
	lastQuery  *dynamodb.QueryInput
	lastTx     *dynamodb.TransactWriteItemsInput
	updates    int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(item map[string]types.AttributeValue) string {
	return item["PK"].(*types.AttributeValueMemberS).Value + "|" + item["SK"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) seed(item map[string]types.AttributeValue) {
	f.items[itemKey(item)] = item
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.seed(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdate = in
	f.updates++
	return &dynamodb.UpdateItemOutput{}, f.updateErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	k := itemKey(in.Key)
	old := f.items[k]
	delete(f.items, k)
	out := &dynamodb.DeleteItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = old
	}
	return out, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQuery = in
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	pk := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	prefix := in.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS).Value
	rid, filtered := in.ExpressionAttributeValues[":rid"].(*types.AttributeValueMemberS)

	var keys []string
	for k := range f.items {
		if strings.HasPrefix(k, pk+"|"+prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &dynamodb.QueryOutput{}
	for _, k := range keys {
		item := f.items[k]
		if filtered && optStr(item, "readableId") != rid.Value {
			continue
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.lastTx = in
	if f.txErr != nil {
		return nil, f.txErr
	}
	for _, it := range in.TransactItems {
		switch {
		case it.Put != nil:
			f.seed(it.Put.Item)
		case it.Delete != nil:
			delete(f.items, itemKey(it.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return c
}

func paymentMethodItem(userID, id, name string, typ domain.PaymentMethodType, mode *bool) map[string]types.AttributeValue {
	item := key(userPK(userID), skPaymentMethod+id)
	item["id"] = str(id)
	item["name"] = str(name)
	item["type"] = str(string(typ))
	if mode != nil {
		item["creditMode"] = boolean(*mode)
	}
	return item
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "t")
	require.Error(t, err)
	_, err = New(newFakeDynamo(), " ")
	require.Error(t, err)
}

func TestListPaymentMethods(t *testing.T) {
	db := newFakeDynamo()
	on := true
	db.seed(paymentMethodItem("u1", "pm1", "Nubank", domain.PaymentCredit, &on))
	db.seed(paymentMethodItem("u1", "pm2", "Itaú Visa", domain.PaymentCredit, nil))
	db.seed(paymentMethodItem("u2", "pm3", "Other", domain.PaymentPix, nil))
	c := mustNewClient(t, db)

	got, err := c.ListPaymentMethods(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Nubank", got[0].Name)
	require.True(t, got[0].InstallmentEligible())
	require.True(t, got[1].ModeUnset())
	require.Equal(t, "u1", got[1].UserID)
}

func TestSetCreditMode_Conditional(t *testing.T) {
	db := newFakeDynamo()
	c := mustNewClient(t, db)

	n, err := c.SetCreditMode(context.Background(), "u1", "pm1", true)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Contains(t, aws.ToString(db.lastUpdate.ConditionExpression), "attribute_not_exists(creditMode)")

	db.updateErr = &types.ConditionalCheckFailedException{Message: aws.String("already set")}
	n, err = c.SetCreditMode(context.Background(), "u1", "pm1", false)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	db.updateErr = errors.New("boom")
	_, err = c.SetCreditMode(context.Background(), "u1", "pm1", false)
	require.ErrorContains(t, err, "SetCreditMode")
}

func TestUpdateCreditMode_Missing(t *testing.T) {
	db := newFakeDynamo()
	db.updateErr = &types.ConditionalCheckFailedException{}
	c := mustNewClient(t, db)
	require.ErrorIs(t, c.UpdateCreditMode(context.Background(), "u1", "pm9", true), ErrNotFound)
}

func TestTransactions_AddListFind(t *testing.T) {
	db := newFakeDynamo()
	c := mustNewClient(t, db)
	ctx := context.Background()

	mk := func(id, rid string, day int, amount int64) domain.Transaction {
		return domain.Transaction{
			ID:          id,
			ReadableID:  rid,
			UserID:      "u1",
			Type:        domain.TransactionExpense,
			Amount:      decimal.NewFromInt(amount),
			Description: "almoço",
			Category:    "Alimentação",
			Date:        time.Date(2026, 10, day, 0, 0, 0, 0, time.UTC),
			CreatedAt:   time.Date(2026, 10, day, 12, 0, 0, 0, time.UTC),
		}
	}
	require.NoError(t, c.AddTransaction(ctx, mk("t1", "AAA111", 1, 10)))
	require.NoError(t, c.AddTransaction(ctx, mk("t2", "BBB222", 15, 20)))
	require.NoError(t, c.AddTransaction(ctx, mk("t3", "CCC333", 30, 30)))
	old := mk("t0", "OLD000", 1, 5)
	old.Date = time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.AddTransaction(ctx, old))

	got, err := c.ListTransactions(ctx, "u1",
		time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "t3", got[0].ID)
	require.True(t, decimal.NewFromInt(30).Equal(got[0].Amount))

	tx, ok, err := c.FindTransactionByReadableID(ctx, "u1", "BBB222")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "t2", tx.ID)

	_, ok, err = c.FindTransactionByReadableID(ctx, "u1", "ZZZ999")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAddTransaction_RequiresIDs(t *testing.T) {
	c := mustNewClient(t, newFakeDynamo())
	require.Error(t, c.AddTransaction(context.Background(), domain.Transaction{}))
}

func TestPreferencesAndBudgets(t *testing.T) {
	db := newFakeDynamo()
	c := mustNewClient(t, db)
	ctx := context.Background()

	_, ok, err := c.GetPreference(ctx, "u1", "Alimentação")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.SavePreference(ctx, "u1", "Alimentação", "pm1"))
	id, ok, err := c.GetPreference(ctx, "u1", "Alimentação")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "pm1", id)

	require.NoError(t, c.SetBudget(ctx, domain.Budget{UserID: "u1", Category: "Lazer", Amount: decimal.NewFromInt(300)}))
	budgets, err := c.ListBudgets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	require.Equal(t, "Lazer", budgets[0].Category)
}

func TestInstallmentPlan_CreateListDelete(t *testing.T) {
	db := newFakeDynamo()
	c := mustNewClient(t, db)
	ctx := context.Background()

	plan := domain.InstallmentPlan{
		ID:                "p1",
		UserID:            "u1",
		PaymentMethodID:   "pm1",
		Description:       "celular",
		TotalAmount:       decimal.NewFromInt(600),
		InstallmentAmount: decimal.NewFromInt(200),
		Installments:      3,
		FirstDueDate:      time.Date(2026, 11, 19, 0, 0, 0, 0, time.UTC),
		Status:            domain.PlanActive,
	}
	var payments []domain.InstallmentPayment
	for i := 1; i <= 3; i++ {
		payments = append(payments, domain.InstallmentPayment{
			PlanID: "p1", Number: i, Amount: decimal.NewFromInt(200),
			DueDate: plan.FirstDueDate.AddDate(0, i-1, 0), Status: domain.PaymentPending,
		})
	}
	payments[0].Status = domain.PaymentPaid
	payments[0].TransactionID = "t1"

	require.NoError(t, c.CreateInstallmentPlan(ctx, plan, payments))
	require.Len(t, db.lastTx.TransactItems, 4)

	plans, err := c.ListInstallmentPlans(ctx, "u1", domain.PlanActive)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.Equal(t, 3, plans[0].Installments)

	completed, err := c.ListInstallmentPlans(ctx, "u1", domain.PlanCompleted)
	require.NoError(t, err)
	require.Empty(t, completed)

	got, err := c.ListInstallmentPayments(ctx, "u1", "p1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "t1", got[0].TransactionID)
	require.Equal(t, domain.PaymentPaid, got[0].Status)

	require.NoError(t, c.DeleteInstallmentPlan(ctx, "u1", "p1"))
	require.Len(t, db.lastTx.TransactItems, 4)
	require.Empty(t, db.items)
}

func TestDeleteInstallmentPlan_Missing(t *testing.T) {
	db := newFakeDynamo()
	db.txErr = &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ConditionalCheckFailed")}},
	}
	c := mustNewClient(t, db)
	require.ErrorIs(t, c.DeleteInstallmentPlan(context.Background(), "u1", "nope"), ErrNotFound)
}

func TestFindAuthorizedNumber(t *testing.T) {
	db := newFakeDynamo()
	item := key(numberPK("5511999990000"), skAuthorization)
	item["userId"] = str("u1")
	item["locale"] = str("en")
	item["permissions"] = &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
		"can_view": boolean(true),
		"can_add":  boolean(true),
	}}
	db.seed(item)
	c := mustNewClient(t, db)

	got, ok, err := c.FindAuthorizedNumber(context.Background(), "5511999990000")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u1", got.UserID)
	require.Equal(t, "en", got.Locale)
	require.NotNil(t, got.Permissions)
	require.True(t, got.Permissions.CanAdd)
	require.False(t, got.Permissions.CanDelete)

	_, ok, err = c.FindAuthorizedNumber(context.Background(), "000")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLegacySession_FindAndDelete(t *testing.T) {
	db := newFakeDynamo()
	item := key(numberPK("551100"), skSession)
	item["userId"] = str("u9")
	db.seed(item)
	c := mustNewClient(t, db)
	ctx := context.Background()

	s, ok, err := c.FindLegacySession(ctx, "551100")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u9", s.UserID)

	existed, err := c.DeleteLegacySession(ctx, "551100")
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = c.DeleteLegacySession(ctx, "551100")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestFindAuthorizedNumber_GetError(t *testing.T) {
	db := newFakeDynamo()
	db.getErr = errors.New("boom")
	c := mustNewClient(t, db)
	_, _, err := c.FindAuthorizedNumber(context.Background(), "1")
	require.ErrorContains(t, err, "FindAuthorizedNumber")
}

func TestPatterns(t *testing.T) {
	db := newFakeDynamo()
	c := mustNewClient(t, db)
	ctx := context.Background()

	lp := domain.LearnedPattern{
		UserID:     "u1",
		Pattern:    "uber {amount}",
		Action:     domain.ActionAddExpense,
		Entities:   domain.Entities{Description: "uber", Category: "Transporte"},
		Confidence: 0.9,
	}
	require.NoError(t, c.SavePattern(ctx, lp))
	require.Contains(t, aws.ToString(db.lastUpdate.UpdateExpression), "if_not_exists(usageCount")
	require.Equal(t, "USER#u1", db.lastUpdate.Key["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "PATTERN#uber {amount}", db.lastUpdate.Key["SK"].(*types.AttributeValueMemberS).Value)

	stored := key(userPK("u1"), skPattern+"uber {amount}")
	stored["action"] = str("add_expense")
	stored["entities"] = str(`{"description":"uber","category":"Transporte"}`)
	stored["confidence"] = &types.AttributeValueMemberN{Value: "0.9"}
	stored["usageCount"] = num(4)
	db.seed(stored)

	got, ok, err := c.FindPattern(ctx, "u1", "uber {amount}")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.ActionAddExpense, got.Action)
	require.Equal(t, "Transporte", got.Entities.Category)
	require.Equal(t, 4, got.UsageCount)

	require.NoError(t, c.IncrementPatternUsage(ctx, "u1", "uber {amount}"))
	require.Contains(t, aws.ToString(db.lastUpdate.UpdateExpression), "ADD usageCount")
}

func TestPutMetric(t *testing.T) {
	db := newFakeDynamo()
	c := mustNewClient(t, db)

	m := domain.ParsingMetric{
		ID:            "m1",
		Conversant:    "5511",
		Message:       "oi",
		Strategy:      "none",
		Action:        domain.ActionUnknown,
		FailureReason: "no strategy matched",
		Duration:      1500 * time.Millisecond,
	}
	require.NoError(t, c.PutMetric(context.Background(), m))
	require.Len(t, db.items, 1)
	for _, item := range db.items {
		require.Equal(t, "no strategy matched", optStr(item, "failureReason"))
		ms, err := intAttr(item, "durationMs")
		require.NoError(t, err)
		require.Equal(t, 1500, ms)
		_, hasUser := item["userId"]
		require.False(t, hasUser)
	}

	require.Error(t, c.PutMetric(context.Background(), domain.ParsingMetric{}))
}
