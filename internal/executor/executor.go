// Package executor runs a resolved intent against the ledger and renders the
// localized reply.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"finbot/internal/auth"
	"finbot/internal/convstate"
	"finbot/internal/domain"
	"finbot/internal/i18n"
	"finbot/internal/metrics"
)

// Ledger is the persistence the executor reads and writes.
type Ledger interface {
	ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	UpdateCreditMode(ctx context.Context, userID, paymentMethodID string, credit bool) error
	AddTransaction(ctx context.Context, tx domain.Transaction) error
	UpdateTransaction(ctx context.Context, tx domain.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error
	ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]domain.Transaction, error)
	FindTransactionByReadableID(ctx context.Context, userID, readableID string) (domain.Transaction, bool, error)
	GetPreference(ctx context.Context, userID, category string) (string, bool, error)
	SavePreference(ctx context.Context, userID, category, paymentMethodID string) error
	SetBudget(ctx context.Context, b domain.Budget) error
	ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error)
	ListInstallmentPlans(ctx context.Context, userID string, status domain.PlanStatus) ([]domain.InstallmentPlan, error)
	ListInstallmentPayments(ctx context.Context, userID, planID string) ([]domain.InstallmentPayment, error)
	DeleteLegacySession(ctx context.Context, phone string) (bool, error)
}

// Gate resolves a conversant when the caller has no record at hand.
type Gate interface {
	CheckAuthorization(ctx context.Context, conversant string) auth.Result
}

// ModeFlow starts credit mode selection.
type ModeFlow interface {
	Start(ctx context.Context, conversant string, rec domain.AuthorizationRecord, pm domain.PaymentMethod, pending *domain.ResolvedIntent) domain.ExecutionResult
}

// InstallmentFlow starts installment plan creation.
type InstallmentFlow interface {
	Start(ctx context.Context, conversant string, rec domain.AuthorizationRecord, intent domain.ResolvedIntent) domain.ExecutionResult
}

// DeletionFlow starts installment plan deletion.
type DeletionFlow interface {
	Start(ctx context.Context, conversant string, rec domain.AuthorizationRecord) domain.ExecutionResult
}

// Deps wires an Executor.
type Deps struct {
	Ledger       Ledger
	Gate         Gate
	Store        convstate.Store
	Modes        ModeFlow
	Installments InstallmentFlow
	Deletions    DeletionFlow
	Translator   i18n.Translator
	Analytics    metrics.Sink
	Logger       *zap.Logger
	Now          func() time.Time
}

// Executor routes intents to their handlers.
type Executor struct {
	ledger       Ledger
	gate         Gate
	store        convstate.Store
	modes        ModeFlow
	installments InstallmentFlow
	deletions    DeletionFlow
	tr           i18n.Translator
	analytics    metrics.Sink
	logger       *zap.Logger
	now          func() time.Time
}

// New creates an Executor.
func New(d Deps) (*Executor, error) {
	switch {
	case d.Ledger == nil:
		return nil, errors.New("executor: ledger must not be nil")
	case d.Gate == nil:
		return nil, errors.New("executor: gate must not be nil")
	case d.Store == nil:
		return nil, errors.New("executor: store must not be nil")
	case d.Modes == nil || d.Installments == nil || d.Deletions == nil:
		return nil, errors.New("executor: flows must not be nil")
	case d.Translator == nil:
		return nil, errors.New("executor: translator must not be nil")
	}
	e := &Executor{
		ledger:       d.Ledger,
		gate:         d.Gate,
		store:        d.Store,
		modes:        d.Modes,
		installments: d.Installments,
		deletions:    d.Deletions,
		tr:           d.Translator,
		analytics:    d.Analytics,
		logger:       d.Logger,
		now:          d.Now,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.analytics == nil {
		e.analytics = metrics.NewAnalytics(e.logger)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// request carries one execution through the handlers.
type request struct {
	conversant string
	intent     domain.ResolvedIntent
	rec        domain.AuthorizationRecord
	locale     string
}

// Execute checks authorization and permission again and runs the handler
// for intent.Action. rec may be nil; the gate is then consulted for actions
// that need an identified user.
func (e *Executor) Execute(ctx context.Context, conversant string, intent domain.ResolvedIntent, rec *domain.AuthorizationRecord) domain.ExecutionResult {
	req := request{conversant: conversant, intent: intent, locale: i18n.DefaultLocale}
	if rec == nil && auth.NeedsSession(intent.Action) {
		res := e.gate.CheckAuthorization(ctx, conversant)
		if res.Err != nil {
			e.logger.Warn("authorization check failed", zap.String("conversant", conversant), zap.Error(res.Err))
			return domain.Failed(e.text(req.locale, i18n.KeyProcessingError), "auth_error")
		}
		if !res.Authorized {
			return domain.Failed(e.text(req.locale, i18n.KeyLoginRequired), "authentication_required")
		}
		rec = &res.Record
	}
	if rec != nil {
		req.rec = *rec
		req.locale = localeOf(rec.Locale)
		if !auth.HasPermission(rec.Permissions, intent.Action) {
			label := e.tr.T(req.locale, i18n.ActionKey(string(intent.Action)))
			return domain.Failed(e.text(req.locale, i18n.KeyPermissionDenied, label), "permission_denied")
		}
	}

	switch intent.Action {
	case domain.ActionAddExpense, domain.ActionAddIncome:
		if intent.IsBatch() {
			return e.addBatch(ctx, req)
		}
		return e.addTransaction(ctx, req)
	case domain.ActionShowExpenses:
		return e.showExpenses(ctx, req)
	case domain.ActionShowReport:
		return e.showReport(ctx, req)
	case domain.ActionEditTransaction:
		return e.editTransaction(ctx, req)
	case domain.ActionDeleteTransaction:
		return e.deleteTransaction(ctx, req)
	case domain.ActionSetBudget:
		return e.setBudget(ctx, req)
	case domain.ActionCreateInstallment:
		return e.installments.Start(ctx, conversant, req.rec, intent)
	case domain.ActionListInstallments:
		return e.listInstallments(ctx, req)
	case domain.ActionDeleteInstallment:
		return e.deletions.Start(ctx, conversant, req.rec)
	case domain.ActionSetCreditMode:
		return e.setCreditMode(ctx, req)
	case domain.ActionHelp:
		return domain.Succeeded(e.text(req.locale, i18n.KeyHelp))
	case domain.ActionLogin:
		return domain.Succeeded(e.text(req.locale, i18n.KeyLoginInstructions))
	case domain.ActionLogout:
		return e.logout(ctx, req)
	case domain.ActionCancel:
		return e.cancel(ctx, req)
	default:
		return domain.Failed(e.text(req.locale, i18n.KeyUnknownCommand), "unknown_action")
	}
}

func (e *Executor) text(locale, key string, args ...any) domain.Reply {
	return domain.Text(e.tr.T(locale, key, args...))
}

// failed reports a persistence error with the generic reply.
func (e *Executor) failed(req request, op string, err error) domain.ExecutionResult {
	e.logger.Error("ledger operation failed",
		zap.String("op", op),
		zap.String("conversant", req.conversant),
		zap.String("action", string(req.intent.Action)),
		zap.Error(err))
	return domain.Failed(e.text(req.locale, i18n.KeyGenericError), fmt.Sprintf("persistence_error: %v", err))
}

// bestEffort runs fn and only logs its failure. Preference learning and
// similar side effects go through here so the ignored error is visible.
func bestEffort(logger *zap.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("best-effort operation failed", zap.String("operation", what), zap.Error(err))
	}
}

func localeOf(l string) string {
	if strings.TrimSpace(l) == "" {
		return i18n.DefaultLocale
	}
	return l
}
