// Package flows implements the multi-message operations: choosing how a
// credit card is tracked, creating an installment plan when more than one
// card fits, and deleting an installment plan.
//
// Every flow keeps its progress in a convstate.Store. Start is called by the
// executor when an intent needs more input; Continue is called by the
// resolver when the next message arrives while the flow's context is
// pending. A parse failure keeps the state; a persistence failure clears it.
package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"finbot/internal/convstate"
	"finbot/internal/domain"
	"finbot/internal/i18n"
	"finbot/internal/metrics"
)

// Step is the outcome of feeding one message to a pending flow.
type Step struct {
	Reply   domain.Reply
	Action  domain.Action
	Success bool
	Reason  string
	// Replay is an intent the flow was holding and is now ready to run.
	Replay *domain.ResolvedIntent
}

// Ledger is the persistence the flows need.
type Ledger interface {
	ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	SetCreditMode(ctx context.Context, userID, paymentMethodID string, credit bool) (int, error)
	CreateInstallmentPlan(ctx context.Context, plan domain.InstallmentPlan, payments []domain.InstallmentPayment) error
	ListInstallmentPlans(ctx context.Context, userID string, status domain.PlanStatus) ([]domain.InstallmentPlan, error)
	ListInstallmentPayments(ctx context.Context, userID, planID string) ([]domain.InstallmentPayment, error)
	UnlinkTransaction(ctx context.Context, userID, id string) error
	DeleteInstallmentPlan(ctx context.Context, userID, planID string) error
}

// Deps are shared by every flow.
type Deps struct {
	Store      convstate.Store
	Ledger     Ledger
	Translator i18n.Translator
	Analytics  metrics.Sink
	Logger     *zap.Logger
	Now        func() time.Time
}

type base struct {
	store     convstate.Store
	ledger    Ledger
	tr        i18n.Translator
	analytics metrics.Sink
	logger    *zap.Logger
	now       func() time.Time
}

func newBase(d Deps, name string) (base, error) {
	if d.Store == nil {
		return base{}, errors.New("flows: store must not be nil")
	}
	if d.Ledger == nil {
		return base{}, errors.New("flows: ledger must not be nil")
	}
	if d.Translator == nil {
		return base{}, errors.New("flows: translator must not be nil")
	}
	b := base{store: d.Store, ledger: d.Ledger, tr: d.Translator, analytics: d.Analytics, logger: d.Logger, now: d.Now}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	b.logger = b.logger.With(zap.String("flow", name))
	if b.now == nil {
		b.now = time.Now
	}
	if b.analytics == nil {
		b.analytics = metrics.NewAnalytics(nil)
	}
	return b, nil
}

func (b base) meta(rec domain.AuthorizationRecord) domain.ContextMeta {
	return domain.ContextMeta{UserID: rec.UserID, Locale: localeOf(rec.Locale), CreatedAt: b.now()}
}

func (b base) text(locale, key string, args ...any) domain.Reply {
	return domain.Text(b.tr.T(locale, key, args...))
}

// failed clears the conversant's state after a persistence error and answers
// with the generic error.
func (b base) failed(ctx context.Context, conversant, locale string, action domain.Action, err error) Step {
	b.logger.Error("flow persistence failed", zap.String("conversant", conversant), zap.Error(err))
	if clearErr := b.store.Clear(ctx, conversant); clearErr != nil {
		b.logger.Warn("clear state after failure", zap.String("conversant", conversant), zap.Error(clearErr))
	}
	return Step{
		Reply:  b.text(locale, i18n.KeyGenericError),
		Action: action,
		Reason: fmt.Sprintf("persistence_error: %v", err),
	}
}

// cancelled clears the state and confirms.
func (b base) cancelled(ctx context.Context, conversant, locale string, action domain.Action) Step {
	if err := b.store.Clear(ctx, conversant); err != nil {
		b.logger.Warn("clear state on cancel", zap.String("conversant", conversant), zap.Error(err))
	}
	return Step{Reply: b.text(locale, i18n.KeyCancelled), Action: action, Success: true}
}

// options renders "1. name" lines under a header.
func (b base) options(locale, header string, names []string) domain.Reply {
	lines := []string{b.tr.T(locale, header)}
	for i, n := range names {
		lines = append(lines, b.tr.T(locale, i18n.KeyOptionLine, i+1, n))
	}
	return domain.Text(strings.Join(lines, "\n"))
}

func localeOf(l string) string {
	if strings.TrimSpace(l) == "" {
		return i18n.DefaultLocale
	}
	return l
}

// resultOf adapts a Step that never replays to an execution result.
func resultOf(s Step) domain.ExecutionResult {
	if s.Success {
		return domain.Succeeded(s.Reply)
	}
	return domain.Failed(s.Reply, s.Reason)
}
