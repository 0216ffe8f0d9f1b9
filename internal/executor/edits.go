package executor

import (
	"context"
	"strings"

	"finbot/internal/domain"
	"finbot/internal/i18n"
	"finbot/internal/money"
	"finbot/internal/textnorm"
)

// findTarget locates the transaction an edit or delete refers to: by readable
// id, or by a description reference among this month's transactions. A
// non-nil result means the lookup already produced the reply.
func (e *Executor) findTarget(ctx context.Context, req request) (domain.Transaction, *domain.ExecutionResult) {
	ent := req.intent.Entities
	if id := strings.TrimPrefix(strings.TrimSpace(ent.TransactionID), "#"); id != "" {
		tx, ok, err := e.ledger.FindTransactionByReadableID(ctx, req.rec.UserID, strings.ToUpper(id))
		if err != nil {
			res := e.failed(req, "FindTransactionByReadableID", err)
			return domain.Transaction{}, &res
		}
		if !ok {
			res := domain.Failed(e.text(req.locale, i18n.KeyTransactionNotFound), "transaction_not_found")
			return domain.Transaction{}, &res
		}
		return tx, nil
	}

	ref := textnorm.Normalize(ent.DescriptionRef)
	if ref == "" {
		res := domain.Failed(e.text(req.locale, i18n.KeyTransactionNotFound), "transaction_not_found")
		return domain.Transaction{}, &res
	}
	from, to := monthRange(e.now())
	txs, err := e.ledger.ListTransactions(ctx, req.rec.UserID, from, to)
	if err != nil {
		res := e.failed(req, "ListTransactions", err)
		return domain.Transaction{}, &res
	}
	var matches []domain.Transaction
	for _, tx := range txs {
		if strings.Contains(textnorm.Normalize(tx.Description), ref) {
			matches = append(matches, tx)
		}
	}
	switch len(matches) {
	case 0:
		res := domain.Failed(e.text(req.locale, i18n.KeyTransactionNotFound), "transaction_not_found")
		return domain.Transaction{}, &res
	case 1:
		return matches[0], nil
	default:
		res := domain.Failed(e.text(req.locale, i18n.KeyTransactionAmbiguous, ent.DescriptionRef), "transaction_ambiguous")
		return domain.Transaction{}, &res
	}
}

func (e *Executor) editTransaction(ctx context.Context, req request) domain.ExecutionResult {
	ent := req.intent.Entities
	if ent.Amount == nil && ent.Description == "" && ent.Category == "" && ent.PaymentMethod == "" && ent.Date == nil {
		return domain.Failed(e.text(req.locale, i18n.KeyNothingToChange), "nothing_to_change")
	}
	tx, res := e.findTarget(ctx, req)
	if res != nil {
		return *res
	}

	if ent.Amount != nil {
		if !ent.Amount.IsPositive() {
			return domain.Failed(e.text(req.locale, i18n.KeyAmountRequired), "invalid_amount")
		}
		tx.Amount = *ent.Amount
	}
	if ent.Description != "" {
		tx.Description = ent.Description
	}
	if ent.Category != "" {
		tx.Category = ent.Category
	}
	if ent.Date != nil {
		tx.Date = dateOf(ent.Date, e.now())
	}
	if ent.PaymentMethod != "" {
		methods, err := e.ledger.ListPaymentMethods(ctx, req.rec.UserID)
		if err != nil {
			return e.failed(req, "ListPaymentMethods", err)
		}
		pm, _, ok := e.paymentMethod(ctx, req.rec.UserID, methods, domain.TransactionItem{PaymentMethod: ent.PaymentMethod})
		if !ok {
			return domain.Failed(e.text(req.locale, i18n.KeyPaymentMethodMissing, ent.PaymentMethod), "payment_method_not_found")
		}
		if pm != nil {
			tx.PaymentMethodID = pm.ID
		}
	}

	if err := e.ledger.UpdateTransaction(ctx, tx); err != nil {
		return e.failed(req, "UpdateTransaction", err)
	}
	out := domain.Succeeded(e.text(req.locale, i18n.KeyTransactionUpdated, tx.ReadableID))
	out.TransactionID = tx.ReadableID
	return out
}

func (e *Executor) deleteTransaction(ctx context.Context, req request) domain.ExecutionResult {
	tx, res := e.findTarget(ctx, req)
	if res != nil {
		return *res
	}
	if err := e.ledger.DeleteTransaction(ctx, req.rec.UserID, tx.ID); err != nil {
		return e.failed(req, "DeleteTransaction", err)
	}
	return domain.Succeeded(e.text(req.locale, i18n.KeyTransactionDeleted, tx.ReadableID))
}

func (e *Executor) setBudget(ctx context.Context, req request) domain.ExecutionResult {
	ent := req.intent.Entities
	if strings.TrimSpace(ent.Category) == "" || ent.Amount == nil || !ent.Amount.IsPositive() {
		return domain.Failed(e.text(req.locale, i18n.KeyBudgetInvalid), "invalid_budget")
	}
	b := domain.Budget{UserID: req.rec.UserID, Category: ent.Category, Amount: *ent.Amount}
	if err := e.ledger.SetBudget(ctx, b); err != nil {
		return e.failed(req, "SetBudget", err)
	}
	return domain.Succeeded(e.text(req.locale, i18n.KeyBudgetSet, b.Category, money.Format(b.Amount, req.locale)))
}
