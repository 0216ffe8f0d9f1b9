// Package ledgertest provides an in-memory ledger for tests of the packages
// that sit above the repository.
package ledgertest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"finbot/internal/domain"
)

// Ledger is an in-memory stand-in for *repository.Client. Set Fail[method]
// to make that method return an error; Calls counts invocations.
type Ledger struct {
	mu sync.Mutex

	Methods      []domain.PaymentMethod
	Transactions []domain.Transaction
	Plans        []domain.InstallmentPlan
	Payments     map[string][]domain.InstallmentPayment
	Preferences  map[string]string
	Budgets      []domain.Budget
	Patterns     map[string]domain.LearnedPattern
	Numbers      map[string]domain.AuthorizedNumber
	Sessions     map[string]domain.LegacySession
	Metrics      []domain.ParsingMetric
	Unlinked     []string

	Fail  map[string]error
	Calls map[string]int
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		Payments:    make(map[string][]domain.InstallmentPayment),
		Preferences: make(map[string]string),
		Patterns:    make(map[string]domain.LearnedPattern),
		Numbers:     make(map[string]domain.AuthorizedNumber),
		Sessions:    make(map[string]domain.LegacySession),
		Fail:        make(map[string]error),
		Calls:       make(map[string]int),
	}
}

func (l *Ledger) enter(method string) error {
	l.mu.Lock()
	l.Calls[method]++
	return l.Fail[method]
}

// Count returns how many times method was called.
func (l *Ledger) Count(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Calls[method]
}

func (l *Ledger) ListPaymentMethods(_ context.Context, userID string) ([]domain.PaymentMethod, error) {
	err := l.enter("ListPaymentMethods")
	defer l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.PaymentMethod
	for _, pm := range l.Methods {
		if pm.UserID == userID {
			out = append(out, pm)
		}
	}
	return out, nil
}

func (l *Ledger) SetCreditMode(_ context.Context, userID, id string, credit bool) (int, error) {
	err := l.enter("SetCreditMode")
	defer l.mu.Unlock()
	if err != nil {
		return 0, err
	}
	for i, pm := range l.Methods {
		if pm.ID == id && pm.UserID == userID {
			if pm.CreditMode != nil {
				return 0, nil
			}
			l.Methods[i].CreditMode = &credit
			return 1, nil
		}
	}
	return 0, nil
}

func (l *Ledger) UpdateCreditMode(_ context.Context, userID, id string, credit bool) error {
	err := l.enter("UpdateCreditMode")
	defer l.mu.Unlock()
	if err != nil {
		return err
	}
	for i, pm := range l.Methods {
		if pm.ID == id && pm.UserID == userID {
			l.Methods[i].CreditMode = &credit
		}
	}
	return nil
}

func (l *Ledger) AddTransaction(_ context.Context, tx domain.Transaction) error {
	err := l.enter("AddTransaction")
	defer l.mu.Unlock()
	if err != nil {
		return err
	}
	l.Transactions = append(l.Transactions, tx)
	return nil
}

func (l *Ledger) UpdateTransaction(_ context.Context, tx domain.Transaction) error {
	err := l.enter("UpdateTransaction")
	defer l.mu.Unlock()
	if err != nil {
		return err
	}
	for i := range l.Transactions {
		if l.Transactions[i].ID == tx.ID {
			l.Transactions[i] = tx
		}
	}
	return nil
}

func (l *Ledger) DeleteTransaction(_ context.Context, _ string, id string) error {
	err := l.enter("DeleteTransaction")
	defer l.mu.Unlock()
	if err != nil {
		return err
	}
	kept := l.Transactions[:0]
	for _, tx := range l.Transactions {
		if tx.ID != id {
			kept = append(kept, tx)
		}
	}
	l.Transactions = kept
	return nil
}

func (l *Ledger) UnlinkTransaction(_ context.Context, _ string, id string) error {
	err := l.enter("UnlinkTransaction")
	defer l.mu.Unlock()
	if err != nil {
		return err
	}
	for i := range l.Transactions {
		if l.Transactions[i].ID == id {
			l.Transactions[i].InstallmentPaymentID = ""
		}
	}
	l.Unlinked = append(l.Unlinked, id)
	return nil
}

func (l *Ledger) ListTransactions(_ context.Context, userID string, from, to time.Time) ([]domain.Transaction, error) {
	err := l.enter("ListTransactions")
	defer l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.Transaction
	for _, tx := range l.Transactions {
		if tx.UserID == userID && !tx.Date.Before(from) && tx.Date.Before(to) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (l *Ledger) FindTransactionByReadableID(_ context.Context, userID, readableID string) (domain.Transaction, bool, error) {
	err := l.enter("FindTransactionByReadableID")
	defer l.mu.Unlock()
	if err != nil {
		return domain.Transaction{}, false, err
	}
	for _, tx := range l.Transactions {
		if tx.UserID == userID && strings.EqualFold(tx.ReadableID, readableID) {
			return tx, true, nil
		}
	}
	return domain.Transaction{}, false, nil
}

func (l *Ledger) GetPreference(_ context.Context, userID, category string) (string, bool, error) {
	err := l.enter("GetPreference")
	defer l.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	id, ok := l.Preferences[userID+"|"+category]
	return id, ok, nil
}

func (l *Ledger) SavePreference(_ context.Context, userID, category, id string) error {
	err := l.enter("SavePreference")
	defer l.mu.Unlock()
	if err != nil {
		return err
	}
	l.Preferences[userID+"|"+category] = id
	return nil
}

func (l *Ledger) SetBudget(_ context.Context, b domain.Budget) error {
	err := l.enter("SetBudget")
	defer l.mu.Unlock()
	if err != nil {
		return err
	}
	for i := range l.Budgets {
		if l.Budgets[i].UserID == b.UserID && l.Budgets[i].Category == b.Category {
			l.Budgets[i] = b
			return nil
		}
	}
	l.Budgets = append(l.Budgets, b)
	return nil
}

func (l *Ledger) ListBudgets(_ context.Context, userID string) ([]domain.Budget, error) {
	err := l.enter("ListBudgets")
	defer l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.Budget
	for _, b := range l.Budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (l *Ledger) CreateInstallmentPlan(_ context.Context, plan domain.InstallmentPlan, payments []domain.InstallmentPayment) error {
	err := l.enter("CreateInstallmentPlan")
	defer l.mu.Unlock()
	if err != nil {
		return err
	}
	l.Plans = append(l.Plans, plan)
	l.Payments[plan.ID] = append([]domain.InstallmentPayment(nil), payments...)
	return nil
}

func (l *Ledger) ListInstallmentPlans(_ context.Context, userID string, status domain.PlanStatus) ([]domain.InstallmentPlan, error) {
	err := l.enter("ListInstallmentPlans")
	defer l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.InstallmentPlan
	for _, p := range l.Plans {
		if p.UserID == userID && (status == "" || p.Status == status) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *Ledger) ListInstallmentPayments(_ context.Context, _ string, planID string) ([]domain.InstallmentPayment, error) {
	err := l.enter("ListInstallmentPayments")
	defer l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return append([]domain.InstallmentPayment(nil), l.Payments[planID]...), nil
}

func (l *Ledger) DeleteInstallmentPlan(_ context.Context, _ string, planID string) error {
	err := l.enter("DeleteInstallmentPlan")
	defer l.mu.Unlock()
	if err != nil {
		return err
	}
	kept := l.Plans[:0]
	for _, p := range l.Plans {
		if p.ID != planID {
			kept = append(kept, p)
		}
	}
	l.Plans = kept
	delete(l.Payments, planID)
	return nil
}

func (l *Ledger) FindAuthorizedNumber(_ context.Context, phone string) (domain.AuthorizedNumber, bool, error) {
	err := l.enter("FindAuthorizedNumber")
	defer l.mu.Unlock()
	if err != nil {
		return domain.AuthorizedNumber{}, false, err
	}
	n, ok := l.Numbers[phone]
	return n, ok, nil
}

func (l *Ledger) FindLegacySession(_ context.Context, phone string) (domain.LegacySession, bool, error) {
	err := l.enter("FindLegacySession")
	defer l.mu.Unlock()
	if err != nil {
		return domain.LegacySession{}, false, err
	}
	s, ok := l.Sessions[phone]
	return s, ok, nil
}

func (l *Ledger) DeleteLegacySession(_ context.Context, phone string) (bool, error) {
	err := l.enter("DeleteLegacySession")
	defer l.mu.Unlock()
	if err != nil {
		return false, err
	}
	_, ok := l.Sessions[phone]
	delete(l.Sessions, phone)
	return ok, nil
}

func (l *Ledger) FindPattern(_ context.Context, userID, pattern string) (domain.LearnedPattern, bool, error) {
	err := l.enter("FindPattern")
	defer l.mu.Unlock()
	if err != nil {
		return domain.LearnedPattern{}, false, err
	}
	p, ok := l.Patterns[userID+"|"+pattern]
	return p, ok, nil
}

func (l *Ledger) SavePattern(_ context.Context, lp domain.LearnedPattern) error {
	err := l.enter("SavePattern")
	defer l.mu.Unlock()
	if err != nil {
		return err
	}
	k := lp.UserID + "|" + lp.Pattern
	lp.UsageCount = l.Patterns[k].UsageCount
	l.Patterns[k] = lp
	return nil
}

func (l *Ledger) IncrementPatternUsage(_ context.Context, userID, pattern string) error {
	err := l.enter("IncrementPatternUsage")
	defer l.mu.Unlock()
	if err != nil {
		return err
	}
	k := userID + "|" + pattern
	p := l.Patterns[k]
	p.UsageCount++
	l.Patterns[k] = p
	return nil
}

func (l *Ledger) PutMetric(_ context.Context, m domain.ParsingMetric) error {
	err := l.enter("PutMetric")
	defer l.mu.Unlock()
	if err != nil {
		return err
	}
	l.Metrics = append(l.Metrics, m)
	return nil
}
