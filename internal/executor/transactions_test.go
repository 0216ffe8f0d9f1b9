package executor

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"finbot/internal/domain"
)

func TestAddTransaction_RecordsExpense(t *testing.T) {
	f := newFixture(t)

	res := f.run(expense("50", "almoço"))
	require.True(t, res.Success)
	require.Equal(t, "3F9A1C", res.TransactionID)
	require.Contains(t, joined(res), "R$ 50,00")
	require.Contains(t, joined(res), "#3F9A1C")

	require.Len(t, f.ledger.Transactions, 1)
	tx := f.ledger.Transactions[0]
	require.Equal(t, domain.TransactionExpense, tx.Type)
	require.True(t, tx.Amount.Equal(decimal.NewFromInt(50)))
	require.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), tx.Date)
	require.Equal(t, testNow, tx.CreatedAt)
	require.Empty(t, tx.PaymentMethodID)
}

func TestAddTransaction_IncomeReply(t *testing.T) {
	f := newFixture(t)
	intent := domain.ResolvedIntent{
		Action:   domain.ActionAddIncome,
		Entities: domain.Entities{Amount: dec("3000"), Description: "salário"},
	}
	res := f.run(intent)
	require.True(t, res.Success)
	require.Contains(t, joined(res), "Receita")
	require.Equal(t, domain.TransactionIncome, f.ledger.Transactions[0].Type)
	require.Equal(t, "Renda", f.ledger.Transactions[0].Category)
}

func TestAddTransaction_MissingAmount(t *testing.T) {
	f := newFixture(t)
	for _, amount := range []*decimal.Decimal{nil, dec("0"), dec("-3")} {
		intent := expense("1", "x")
		intent.Entities.Amount = amount
		res := f.run(intent)
		require.False(t, res.Success)
		require.Equal(t, "missing_amount", res.Reason)
	}
	require.Empty(t, f.ledger.Calls)
}

func TestAddTransaction_NamedMethodSavesPreference(t *testing.T) {
	f := newFixture(t)
	f.ledger.Methods = []domain.PaymentMethod{
		{ID: "pm1", UserID: "u1", Name: "Nubank", Type: domain.PaymentCredit, CreditMode: boolPtr(false)},
		{ID: "pm2", UserID: "u1", Name: "Conta Inter", Type: domain.PaymentPix},
	}
	intent := expense("50", "almoço")
	intent.Entities.PaymentMethod = "nubank"

	require.True(t, f.run(intent).Success)
	require.Equal(t, "pm1", f.ledger.Transactions[0].PaymentMethodID)
	require.Equal(t, "pm1", f.ledger.Preferences["u1|Alimentação"])

	intent = expense("30", "mercado")
	intent.Entities.PaymentMethod = "Pix"
	require.True(t, f.run(intent).Success)
	require.Equal(t, "pm2", f.ledger.Transactions[1].PaymentMethodID)
}

func TestAddTransaction_PreferenceApplied(t *testing.T) {
	f := newFixture(t)
	f.ledger.Methods = []domain.PaymentMethod{{ID: "pm2", UserID: "u1", Name: "Débito Itaú", Type: domain.PaymentDebit}}
	f.ledger.Preferences["u1|Alimentação"] = "pm2"

	require.True(t, f.run(expense("50", "almoço")).Success)
	require.Equal(t, "pm2", f.ledger.Transactions[0].PaymentMethodID)
	require.Zero(t, f.ledger.Count("SavePreference"))
}

func TestAddTransaction_PreferenceFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t)
	f.ledger.Methods = []domain.PaymentMethod{{ID: "pm1", UserID: "u1", Name: "Nubank", Type: domain.PaymentDebit}}
	f.ledger.Fail["GetPreference"] = errors.New("read throttled")
	f.ledger.Fail["SavePreference"] = errors.New("write throttled")

	require.True(t, f.run(expense("50", "almoço")).Success)
	intent := expense("20", "uber")
	intent.Entities.PaymentMethod = "nubank"
	require.True(t, f.run(intent).Success)

	require.Len(t, f.ledger.Transactions, 2)
	require.Equal(t, 2, f.logs.FilterMessage("best-effort operation failed").Len())
}

func TestAddTransaction_UnknownCardName(t *testing.T) {
	f := newFixture(t)
	intent := expense("50", "almoço")
	intent.Entities.PaymentMethod = "bradesco"

	res := f.run(intent)
	require.False(t, res.Success)
	require.Equal(t, "payment_method_not_found", res.Reason)
	require.Empty(t, f.ledger.Transactions)

	// A generic kind the user has no method for is recorded without one.
	intent.Entities.PaymentMethod = "Dinheiro"
	require.True(t, f.run(intent).Success)
}

func TestAddTransaction_UnsetCreditModeStartsSelection(t *testing.T) {
	f := newFixture(t)
	f.ledger.Methods = []domain.PaymentMethod{{ID: "pm1", UserID: "u1", Name: "Nubank", Type: domain.PaymentCredit}}
	intent := expense("50", "almoço")
	intent.Entities.PaymentMethod = "nubank"

	res := f.run(intent)
	require.True(t, res.Success)
	require.Contains(t, joined(res), "Como você quer acompanhar o cartão Nubank")
	require.Empty(t, f.ledger.Transactions)

	pc, ok, err := f.store.Get(t.Context(), conversant)
	require.NoError(t, err)
	require.True(t, ok)
	mode := pc.(*domain.ModeSelectionContext)
	require.Equal(t, "pm1", mode.PaymentMethodID)
	require.Equal(t, intent, *mode.Pending)
}

func TestAddTransaction_DuplicateAsksFirst(t *testing.T) {
	f := newFixture(t)
	f.ledger.Transactions = []domain.Transaction{{
		ID: "old", ReadableID: "AAA111", UserID: "u1", Type: domain.TransactionExpense,
		Amount: decimal.NewFromInt(50), Description: "Almoço",
		Date: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), CreatedAt: testNow.Add(-2 * time.Minute),
	}}

	res := f.run(expense("50", "almoco"))
	require.True(t, res.Success)
	require.Contains(t, joined(res), "já registrou")
	require.Zero(t, f.ledger.Count("AddTransaction"))

	pc, ok, err := f.store.Get(t.Context(), conversant)
	require.NoError(t, err)
	require.True(t, ok)
	dup := pc.(*domain.DuplicateConfirmationContext)
	require.Equal(t, "AAA111", dup.ExistingID)

	forced := expense("50", "almoco")
	forced.Entities.Force = true
	require.True(t, f.run(forced).Success)
	require.Len(t, f.ledger.Transactions, 2)
}

func TestAddTransaction_OldIdenticalIsNotDuplicate(t *testing.T) {
	f := newFixture(t)
	f.ledger.Transactions = []domain.Transaction{{
		ID: "old", UserID: "u1", Type: domain.TransactionExpense, Amount: decimal.NewFromInt(50), Description: "almoço",
		Date: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), CreatedAt: testNow.Add(-6 * time.Minute),
	}}
	require.True(t, f.run(expense("50", "almoço")).Success)
	require.Len(t, f.ledger.Transactions, 2)
}

func TestAddTransaction_PersistenceError(t *testing.T) {
	f := newFixture(t)
	f.ledger.Fail["AddTransaction"] = errors.New("conditional check failed")

	res := f.run(expense("50", "almoço"))
	require.False(t, res.Success)
	require.Contains(t, res.Reason, "persistence_error")
	require.Contains(t, joined(res), "Algo deu errado")
}

func TestAddBatch_SequentialWithPartialFailure(t *testing.T) {
	f := newFixture(t)
	intent := domain.ResolvedIntent{
		Action: domain.ActionAddExpense,
		Entities: domain.Entities{Items: []domain.TransactionItem{
			{Type: domain.TransactionExpense, Amount: decimal.NewFromInt(20), Description: "uber"},
			{Type: domain.TransactionExpense, Amount: decimal.Zero, Description: "nada"},
			{Type: domain.TransactionExpense, Amount: decimal.NewFromInt(35), Description: "mercado"},
		}},
	}

	res := f.run(intent)
	require.True(t, res.Success)
	lines := res.Reply.Messages
	require.Len(t, lines, 1)
	require.Equal(t,
		"1. ✅ uber R$ 20,00\n2. ❌ nada\n3. ✅ mercado R$ 35,00\n2 de 3 lançamentos registrados.",
		joined(res))
	require.Len(t, f.ledger.Transactions, 2)
	require.Equal(t, "uber", f.ledger.Transactions[0].Description)
	require.Equal(t, "mercado", f.ledger.Transactions[1].Description)
}

func TestAddBatch_AllFailed(t *testing.T) {
	f := newFixture(t)
	f.ledger.Fail["AddTransaction"] = errors.New("down")
	intent := domain.ResolvedIntent{
		Action: domain.ActionAddExpense,
		Entities: domain.Entities{Items: []domain.TransactionItem{
			{Amount: decimal.NewFromInt(20), Description: "uber"},
			{Amount: decimal.NewFromInt(35), Description: "mercado"},
		}},
	}
	res := f.run(intent)
	require.False(t, res.Success)
	require.Equal(t, "batch_all_failed", res.Reason)
	require.Contains(t, joined(res), "0 de 2")
}

func TestAddBatch_UnknownCardNameFailsItsLine(t *testing.T) {
	f := newFixture(t)
	intent := domain.ResolvedIntent{
		Action: domain.ActionAddExpense,
		Entities: domain.Entities{Items: []domain.TransactionItem{
			{Type: domain.TransactionExpense, Amount: decimal.NewFromInt(20), Description: "uber", PaymentMethod: "bradesco"},
			{Type: domain.TransactionExpense, Amount: decimal.NewFromInt(35), Description: "mercado"},
		}},
	}

	res := f.run(intent)
	require.True(t, res.Success)
	require.Equal(t,
		"1. ❌ uber\n2. ✅ mercado R$ 35,00\n1 de 2 lançamentos registrados.",
		joined(res))
	require.Len(t, f.ledger.Transactions, 1)
	require.Equal(t, "mercado", f.ledger.Transactions[0].Description)
}
