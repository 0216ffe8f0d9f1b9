package executor

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"finbot/internal/domain"
	"finbot/internal/i18n"
	"finbot/internal/metrics"
	"finbot/internal/money"
	"finbot/internal/textnorm"
)

// duplicateWindow is how recent an identical transaction must be to ask
// before recording it again.
const duplicateWindow = 5 * time.Minute

const readableIDLength = 6

var newUUID = func() string {
	return uuid.NewString()
}

// typeKeywords maps the generic method names the parser emits to a kind.
var typeKeywords = map[string]domain.PaymentMethodType{
	"pix":      domain.PaymentPix,
	"dinheiro": domain.PaymentCash,
	"cash":     domain.PaymentCash,
	"debito":   domain.PaymentDebit,
	"debit":    domain.PaymentDebit,
	"credito":  domain.PaymentCredit,
	"credit":   domain.PaymentCredit,
}

func (e *Executor) addTransaction(ctx context.Context, req request) domain.ExecutionResult {
	ent := req.intent.Entities
	if ent.Amount == nil || !ent.Amount.IsPositive() {
		return domain.Failed(e.text(req.locale, i18n.KeyAmountRequired), "missing_amount")
	}
	item := domain.TransactionItem{
		Type:          transactionType(req.intent.Action, ent.Type),
		Amount:        *ent.Amount,
		Description:   ent.Description,
		Category:      ent.Category,
		PaymentMethod: ent.PaymentMethod,
		Date:          ent.Date,
	}

	methods, err := e.ledger.ListPaymentMethods(ctx, req.rec.UserID)
	if err != nil {
		return e.failed(req, "ListPaymentMethods", err)
	}
	pm, named, ok := e.paymentMethod(ctx, req.rec.UserID, methods, item)
	if !ok {
		return domain.Failed(e.text(req.locale, i18n.KeyPaymentMethodMissing, item.PaymentMethod), "payment_method_not_found")
	}
	if pm != nil && pm.ModeUnset() {
		pending := req.intent
		return e.modes.Start(ctx, req.conversant, req.rec, *pm, &pending)
	}

	if !ent.Force {
		dup, found, err := e.findDuplicate(ctx, req.rec.UserID, item)
		if err != nil {
			return e.failed(req, "ListTransactions", err)
		}
		if found {
			return e.askDuplicate(ctx, req, item, dup)
		}
	}

	tx, err := e.record(ctx, req.rec.UserID, item, pm)
	if err != nil {
		return e.failed(req, "AddTransaction", err)
	}
	if named && pm != nil {
		bestEffort(e.logger, "save payment preference", func() error {
			return e.ledger.SavePreference(ctx, req.rec.UserID, tx.Category, pm.ID)
		})
	}

	key := i18n.KeyExpenseAdded
	if tx.Type == domain.TransactionIncome {
		key = i18n.KeyIncomeAdded
	}
	res := domain.Succeeded(e.text(req.locale, key,
		money.Format(tx.Amount, req.locale), tx.Description, tx.Category, tx.ReadableID))
	res.TransactionID = tx.ReadableID
	return res
}

// addBatch records every item in order. A failed item is reported in its
// line and does not stop the rest.
func (e *Executor) addBatch(ctx context.Context, req request) domain.ExecutionResult {
	methods, err := e.ledger.ListPaymentMethods(ctx, req.rec.UserID)
	if err != nil {
		return e.failed(req, "ListPaymentMethods", err)
	}
	items := req.intent.Entities.Items
	lines := make([]string, 0, len(items)+1)
	recorded := 0
	for i, item := range items {
		if item.Type == "" {
			item.Type = transactionType(req.intent.Action, "")
		}
		label := item.Description
		if label == "" {
			label = money.Format(item.Amount, req.locale)
		}
		if !item.Amount.IsPositive() {
			lines = append(lines, e.tr.T(req.locale, i18n.KeyBatchItemFailed, i+1, label))
			continue
		}
		pm, _, ok := e.paymentMethod(ctx, req.rec.UserID, methods, item)
		if !ok {
			e.logger.Warn("batch item payment method not found", zap.Int("item", i+1), zap.String("payment_method", item.PaymentMethod))
			lines = append(lines, e.tr.T(req.locale, i18n.KeyBatchItemFailed, i+1, label))
			continue
		}
		if _, err := e.record(ctx, req.rec.UserID, item, pm); err != nil {
			e.logger.Warn("batch item failed", zap.Int("item", i+1), zap.Error(err))
			lines = append(lines, e.tr.T(req.locale, i18n.KeyBatchItemFailed, i+1, label))
			continue
		}
		recorded++
		lines = append(lines, e.tr.T(req.locale, i18n.KeyBatchItemOK, i+1, item.Description, money.Format(item.Amount, req.locale)))
	}
	lines = append(lines, e.tr.T(req.locale, i18n.KeyBatchSummary, recorded, len(items)))

	reply := domain.Text(strings.Join(lines, "\n"))
	if recorded == 0 {
		return domain.Failed(reply, "batch_all_failed")
	}
	return domain.Succeeded(reply)
}

// record writes one transaction. A method that still needs a credit mode is
// recorded without one.
func (e *Executor) record(ctx context.Context, userID string, item domain.TransactionItem, pm *domain.PaymentMethod) (domain.Transaction, error) {
	now := e.now()
	id := newUUID()
	tx := domain.Transaction{
		ID:          id,
		ReadableID:  readableID(id),
		UserID:      userID,
		Type:        item.Type,
		Amount:      item.Amount,
		Description: item.Description,
		Category:    item.Category,
		Date:        dateOf(item.Date, now),
		CreatedAt:   now,
	}
	if tx.Category == "" {
		tx.Category = defaultCategory(tx.Type)
	}
	if pm != nil {
		tx.PaymentMethodID = pm.ID
	}
	if err := e.ledger.AddTransaction(ctx, tx); err != nil {
		return domain.Transaction{}, err
	}
	e.analytics.Capture(metrics.EventTransactionCreated, userID, map[string]any{
		"transaction_id": tx.ID,
		"type":           string(tx.Type),
		"category":       tx.Category,
	})
	return tx, nil
}

// paymentMethod resolves the method for item: the one named in the message,
// else the first of the named kind, else the category preference. named
// reports an explicit choice; ok is false when a card name matched nothing.
func (e *Executor) paymentMethod(ctx context.Context, userID string, methods []domain.PaymentMethod, item domain.TransactionItem) (pm *domain.PaymentMethod, named, ok bool) {
	if item.PaymentMethod != "" {
		names := make([]string, len(methods))
		for i, m := range methods {
			names[i] = m.Name
		}
		if i, found := textnorm.Match(item.PaymentMethod, names); found {
			return &methods[i], true, true
		}
		kind, generic := typeKeywords[textnorm.Normalize(item.PaymentMethod)]
		if !generic {
			return nil, false, false
		}
		for i := range methods {
			if methods[i].Type == kind {
				return &methods[i], true, true
			}
		}
		return nil, false, true
	}

	var preferred string
	bestEffort(e.logger, "read payment preference", func() error {
		id, found, err := e.ledger.GetPreference(ctx, userID, categoryOf(item))
		if found {
			preferred = id
		}
		return err
	})
	for i := range methods {
		if preferred != "" && methods[i].ID == preferred {
			return &methods[i], false, true
		}
	}
	return nil, false, true
}

func (e *Executor) findDuplicate(ctx context.Context, userID string, item domain.TransactionItem) (domain.Transaction, bool, error) {
	now := e.now()
	day := dateOf(item.Date, now)
	txs, err := e.ledger.ListTransactions(ctx, userID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return domain.Transaction{}, false, err
	}
	for _, tx := range txs {
		if tx.Type != item.Type || !tx.Amount.Equal(item.Amount) {
			continue
		}
		if !textnorm.Equal(tx.Description, item.Description) {
			continue
		}
		if now.Sub(tx.CreatedAt) <= duplicateWindow {
			return tx, true, nil
		}
	}
	return domain.Transaction{}, false, nil
}

func (e *Executor) askDuplicate(ctx context.Context, req request, item domain.TransactionItem, dup domain.Transaction) domain.ExecutionResult {
	pc := &domain.DuplicateConfirmationContext{
		ContextMeta: domain.ContextMeta{UserID: req.rec.UserID, Locale: req.locale, CreatedAt: e.now()},
		Intent:      req.intent,
		ExistingID:  dup.ReadableID,
	}
	if err := e.store.Put(ctx, req.conversant, pc); err != nil {
		return e.failed(req, "PutState", err)
	}
	return domain.Succeeded(e.text(req.locale, i18n.KeyDuplicateSuspected,
		money.Format(item.Amount, req.locale), item.Description))
}

func transactionType(action domain.Action, t domain.TransactionType) domain.TransactionType {
	if t != "" {
		return t
	}
	if action == domain.ActionAddIncome {
		return domain.TransactionIncome
	}
	return domain.TransactionExpense
}

func categoryOf(item domain.TransactionItem) string {
	if item.Category != "" {
		return item.Category
	}
	return defaultCategory(item.Type)
}

func defaultCategory(t domain.TransactionType) string {
	if t == domain.TransactionIncome {
		return "Renda"
	}
	return "Outros"
}

// readableID is the short reference users type back ("#3F9A1C").
func readableID(id string) string {
	s := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(s) > readableIDLength {
		s = s[:readableIDLength]
	}
	return s
}

// dateOf truncates the given date, or now, to a UTC calendar day.
func dateOf(d *time.Time, now time.Time) time.Time {
	t := now.UTC()
	if d != nil {
		t = *d
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
