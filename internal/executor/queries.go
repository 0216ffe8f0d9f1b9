package executor

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finbot/internal/domain"
	"finbot/internal/i18n"
	"finbot/internal/money"
)

// maxListed caps the transaction listing.
const maxListed = 20

func (e *Executor) showExpenses(ctx context.Context, req request) domain.ExecutionResult {
	from, to := monthRange(e.now())
	txs, err := e.ledger.ListTransactions(ctx, req.rec.UserID, from, to)
	if err != nil {
		return e.failed(req, "ListTransactions", err)
	}
	if len(txs) == 0 {
		return domain.Succeeded(e.text(req.locale, i18n.KeyExpensesEmpty))
	}
	if len(txs) > maxListed {
		txs = txs[:maxListed]
	}
	lines := []string{e.tr.T(req.locale, i18n.KeyExpensesHeader)}
	for _, tx := range txs {
		amount := money.Format(tx.Amount, req.locale)
		if tx.Type == domain.TransactionIncome {
			amount = "+" + amount
		}
		lines = append(lines, e.tr.T(req.locale, i18n.KeyExpensesLine, shortDate(tx.Date, req.locale), tx.Description, amount, tx.ReadableID))
	}
	return domain.Succeeded(domain.Text(strings.Join(lines, "\n")))
}

type categoryTotal struct {
	name  string
	spent decimal.Decimal
}

func (e *Executor) showReport(ctx context.Context, req request) domain.ExecutionResult {
	now := e.now()
	from, to := monthRange(now)
	txs, err := e.ledger.ListTransactions(ctx, req.rec.UserID, from, to)
	if err != nil {
		return e.failed(req, "ListTransactions", err)
	}
	if len(txs) == 0 {
		return domain.Succeeded(e.text(req.locale, i18n.KeyReportEmpty))
	}
	budgets, err := e.ledger.ListBudgets(ctx, req.rec.UserID)
	if err != nil {
		return e.failed(req, "ListBudgets", err)
	}
	limits := make(map[string]decimal.Decimal, len(budgets))
	for _, b := range budgets {
		limits[b.Category] = b.Amount
	}

	income, expense := decimal.Zero, decimal.Zero
	byCategory := map[string]decimal.Decimal{}
	for _, tx := range txs {
		if tx.Type == domain.TransactionIncome {
			income = income.Add(tx.Amount)
			continue
		}
		expense = expense.Add(tx.Amount)
		byCategory[tx.Category] = byCategory[tx.Category].Add(tx.Amount)
	}
	totals := make([]categoryTotal, 0, len(byCategory))
	for name, spent := range byCategory {
		totals = append(totals, categoryTotal{name: name, spent: spent})
	}
	sort.Slice(totals, func(i, j int) bool {
		if c := totals[i].spent.Cmp(totals[j].spent); c != 0 {
			return c > 0
		}
		return totals[i].name < totals[j].name
	})

	lines := []string{e.tr.T(req.locale, i18n.KeyReportHeader, now.Format("01/2006"))}
	for _, t := range totals {
		spent := money.Format(t.spent, req.locale)
		if limit, ok := limits[t.name]; ok {
			lines = append(lines, e.tr.T(req.locale, i18n.KeyReportBudget, t.name, spent, money.Format(limit, req.locale)))
			continue
		}
		lines = append(lines, e.tr.T(req.locale, i18n.KeyReportLine, t.name, spent))
	}
	lines = append(lines, e.tr.T(req.locale, i18n.KeyReportTotals,
		money.Format(income, req.locale),
		money.Format(expense, req.locale),
		money.Format(income.Sub(expense), req.locale)))
	return domain.Succeeded(domain.Text(strings.Join(lines, "\n")))
}

func (e *Executor) listInstallments(ctx context.Context, req request) domain.ExecutionResult {
	plans, err := e.ledger.ListInstallmentPlans(ctx, req.rec.UserID, domain.PlanActive)
	if err != nil {
		return e.failed(req, "ListInstallmentPlans", err)
	}
	if len(plans) == 0 {
		return domain.Succeeded(e.text(req.locale, i18n.KeyInstallmentsEmpty))
	}
	lines := []string{e.tr.T(req.locale, i18n.KeyInstallmentsHeader)}
	for i, p := range plans {
		payments, err := e.ledger.ListInstallmentPayments(ctx, req.rec.UserID, p.ID)
		if err != nil {
			return e.failed(req, "ListInstallmentPayments", err)
		}
		paid := 0
		for _, pay := range payments {
			if pay.Status == domain.PaymentPaid {
				paid++
			}
		}
		lines = append(lines, e.tr.T(req.locale, i18n.KeyInstallmentsLine,
			i+1, p.Description, money.Format(p.TotalAmount, req.locale), paid, p.Installments))
	}
	return domain.Succeeded(domain.Text(strings.Join(lines, "\n")))
}

// monthRange is [first day of now's month, first day of the next) in UTC.
func monthRange(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func shortDate(t time.Time, locale string) string {
	if strings.HasPrefix(locale, "en") {
		return t.Format("01/02")
	}
	return t.Format("02/01")
}
