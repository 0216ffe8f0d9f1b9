package parser

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"finbot/internal/domain"
)

func newTestParser() *Parser {
	return New(WithClock(func() time.Time {
		return time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)
	}))
}

func requireAmount(t *testing.T, want string, got *decimal.Decimal) {
	t.Helper()
	require.NotNil(t, got)
	require.True(t, decimal.RequireFromString(want).Equal(*got), "got %s", got)
}

func TestParse_Expense(t *testing.T) {
	got := newTestParser().Parse("gastei 50 reais no almoço")
	require.Equal(t, domain.ActionAddExpense, got.Action)
	require.InDelta(t, 0.85, got.Confidence, 1e-9)
	requireAmount(t, "50", got.Entities.Amount)
	require.Equal(t, "almoço", got.Entities.Description)
	require.Equal(t, "Alimentação", got.Entities.Category)
	require.Equal(t, domain.TransactionExpense, got.Entities.Type)
}

func TestParse_Income(t *testing.T) {
	got := newTestParser().Parse("recebi 3000 de salário")
	require.Equal(t, domain.ActionAddIncome, got.Action)
	requireAmount(t, "3000", got.Entities.Amount)
	require.Equal(t, "salário", got.Entities.Description)
	require.Equal(t, "Salário", got.Entities.Category)
}

func TestParse_RelativeDateAndCategory(t *testing.T) {
	got := newTestParser().Parse("ontem gastei 20 no uber")
	require.Equal(t, domain.ActionAddExpense, got.Action)
	require.NotNil(t, got.Entities.Date)
	require.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), *got.Entities.Date)
	require.Equal(t, "uber", got.Entities.Description)
	require.Equal(t, "Transporte", got.Entities.Category)
}

func TestParse_Installment(t *testing.T) {
	got := newTestParser().Parse("comprei celular 600 em 3x no cartão nubank")
	require.Equal(t, domain.ActionCreateInstallment, got.Action)
	require.InDelta(t, 0.9, got.Confidence, 1e-9)
	requireAmount(t, "600", got.Entities.Amount)
	require.Equal(t, 3, got.Entities.Installments)
	require.Equal(t, "celular", got.Entities.Description)
	require.Equal(t, "nubank", got.Entities.PaymentMethod)
	require.Equal(t, "Compras", got.Entities.Category)
}

func TestParse_InstallmentCommand(t *testing.T) {
	got := newTestParser().Parse("/parcelar 600 3 Celular")
	require.Equal(t, domain.ActionCreateInstallment, got.Action)
	require.InDelta(t, 0.95, got.Confidence, 1e-9)
	requireAmount(t, "600", got.Entities.Amount)
	require.Equal(t, 3, got.Entities.Installments)
	require.Equal(t, "Celular", got.Entities.Description)
}

func TestParse_Batch(t *testing.T) {
	got := newTestParser().Parse("almoço 30\nuber 25\nrecebi 100")
	require.Equal(t, domain.ActionAddExpense, got.Action)
	require.Len(t, got.Entities.Items, 3)
	require.True(t, got.IsBatch())

	want := []domain.TransactionType{domain.TransactionExpense, domain.TransactionExpense, domain.TransactionIncome}
	var types []domain.TransactionType
	for _, it := range got.Entities.Items {
		types = append(types, it.Type)
	}
	require.Empty(t, cmp.Diff(want, types))
	require.Equal(t, "almoço", got.Entities.Items[0].Description)
	require.True(t, decimal.NewFromInt(25).Equal(got.Entities.Items[1].Amount))
}

func TestParse_KeywordActions(t *testing.T) {
	cases := []struct {
		text   string
		action domain.Action
	}{
		{"ajuda", domain.ActionHelp},
		{"/help", domain.ActionHelp},
		{"login", domain.ActionLogin},
		{"cancelar", domain.ActionCancel},
		{"relatório", domain.ActionShowReport},
		{"meus gastos", domain.ActionShowExpenses},
		{"excluir parcelamento", domain.ActionDeleteInstallment},
		{"meus parcelamentos", domain.ActionListInstallments},
		{"/excluir_parcela", domain.ActionDeleteInstallment},
		{"/xyz", domain.ActionUnknown},
		{"oi tudo bem", domain.ActionUnknown},
	}
	p := newTestParser()
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			require.Equal(t, tc.action, p.Parse(tc.text).Action)
		})
	}
}

func TestParse_WeakAmountOnly(t *testing.T) {
	got := newTestParser().Parse("50 almoço")
	require.Equal(t, domain.ActionAddExpense, got.Action)
	require.Less(t, got.Confidence, 0.8)
}

func TestParse_Budget(t *testing.T) {
	got := newTestParser().Parse("orçamento alimentação 500")
	require.Equal(t, domain.ActionSetBudget, got.Action)
	requireAmount(t, "500", got.Entities.Amount)
	require.Equal(t, "Alimentação", got.Entities.Category)
}

func TestParse_CreditMode(t *testing.T) {
	got := newTestParser().Parse("modo crédito cartão nubank")
	require.Equal(t, domain.ActionSetCreditMode, got.Action)
	require.Equal(t, "nubank", got.Entities.PaymentMethod)
	require.NotNil(t, got.Entities.CreditMode)
	require.True(t, *got.Entities.CreditMode)

	got = newTestParser().Parse("/modo Itaú Visa simples")
	require.Equal(t, domain.ActionSetCreditMode, got.Action)
	require.Equal(t, "Itaú Visa", got.Entities.PaymentMethod)
	require.False(t, *got.Entities.CreditMode)
}

func TestParse_Deterministic(t *testing.T) {
	p := newTestParser()
	first := p.Parse("comprei celular 600 em 3x")
	for i := 0; i < 5; i++ {
		require.Empty(t, cmp.Diff(first, p.Parse("comprei celular 600 em 3x")))
	}
}

func TestDetectCorrection(t *testing.T) {
	p := newTestParser()

	got := p.DetectCorrection("corrige #abc123 para 45")
	require.Equal(t, domain.ActionEditTransaction, got.Action)
	require.Equal(t, "ABC123", got.Entities.TransactionID)
	requireAmount(t, "45", got.Entities.Amount)
	require.Greater(t, got.Confidence, 0.5)

	got = p.DetectCorrection("apagar o almoço")
	require.Equal(t, domain.ActionDeleteTransaction, got.Action)
	require.Equal(t, "almoco", got.Entities.DescriptionRef)
	require.Greater(t, got.Confidence, 0.5)

	got = p.DetectCorrection("muda a categoria do almoço para transporte")
	require.Equal(t, domain.ActionEditTransaction, got.Action)
	require.Equal(t, "almoco", got.Entities.DescriptionRef)
	require.Equal(t, "Transporte", got.Entities.Category)
	require.Greater(t, got.Confidence, 0.5)
}

func TestDetectCorrection_IgnoresOtherTopics(t *testing.T) {
	p := newTestParser()
	for _, text := range []string{
		"gastei 50 no almoço",
		"excluir parcelamento",
		"paguei a troca de óleo 150",
		"muda",
	} {
		t.Run(text, func(t *testing.T) {
			require.LessOrEqual(t, p.DetectCorrection(text).Confidence, 0.5)
		})
	}
}

func TestGeneralize(t *testing.T) {
	require.Equal(t, "uber {amount}", Generalize("Uber 25 reais"))
	require.Equal(t, "cafe da manha {amount}", Generalize("Café da manhã 12,50"))
}

func TestIsCorrectionAndExtract(t *testing.T) {
	require.True(t, IsCorrection("não, era 45"))
	require.True(t, IsCorrection("Errado"))
	require.False(t, IsCorrection("gastei 45 no mercado"))

	e := newTestParser().ExtractTransaction("não, era 45")
	requireAmount(t, "45", e.Amount)
}
