package flows

import (
	"context"

	"go.uber.org/zap"

	"finbot/internal/domain"
	"finbot/internal/i18n"
	"finbot/internal/metrics"
	"finbot/internal/textnorm"
)

// ModeSelection asks how a credit card without a tracking mode is used and
// then replays the transaction that was waiting on the answer.
type ModeSelection struct {
	base
}

// NewModeSelection creates the mode selection flow.
func NewModeSelection(d Deps) (*ModeSelection, error) {
	b, err := newBase(d, "mode_selection")
	if err != nil {
		return nil, err
	}
	return &ModeSelection{base: b}, nil
}

// Start stores the pending choice and prompts for it. pending may be nil
// when the user only asked to configure the card.
func (f *ModeSelection) Start(ctx context.Context, conversant string, rec domain.AuthorizationRecord, pm domain.PaymentMethod, pending *domain.ResolvedIntent) domain.ExecutionResult {
	pc := &domain.ModeSelectionContext{
		ContextMeta:       f.meta(rec),
		PaymentMethodID:   pm.ID,
		PaymentMethodName: pm.Name,
		Pending:           pending,
	}
	if err := f.store.Put(ctx, conversant, pc); err != nil {
		return resultOf(f.failed(ctx, conversant, pc.Locale, domain.ActionSetCreditMode, err))
	}
	return domain.Succeeded(f.text(pc.Locale, i18n.KeyModePrompt, pm.Name))
}

// parseMode reads "1"/"crédito"/"credit" as credit and "2"/"simples"/"simple"
// as simple.
func parseMode(text string) (credit, ok bool) {
	switch {
	case textnorm.OneOf(text, "1", "credito", "credit"):
		return true, true
	case textnorm.OneOf(text, "2", "simples", "simple"):
		return false, true
	}
	return false, false
}

// Continue handles the answer to the mode prompt.
func (f *ModeSelection) Continue(ctx context.Context, conversant, text string, pc *domain.ModeSelectionContext) Step {
	locale := localeOf(pc.Locale)
	if textnorm.IsCancel(text) {
		return f.cancelled(ctx, conversant, locale, domain.ActionCancel)
	}
	credit, ok := parseMode(text)
	if !ok {
		return Step{
			Reply:  f.text(locale, i18n.KeyModeInvalidChoice),
			Action: domain.ActionSelectCreditMode,
			Reason: "invalid_mode_choice",
		}
	}

	// Only the message that consumes the context may replay its transaction.
	taken, ok, err := f.store.TakeAndClear(ctx, conversant)
	if err != nil {
		return f.failed(ctx, conversant, locale, domain.ActionSelectCreditMode, err)
	}
	held, isMode := taken.(*domain.ModeSelectionContext)
	if !ok || !isMode {
		return Step{
			Reply:  f.text(locale, i18n.KeyModeAlreadySet, pc.PaymentMethodName),
			Action: domain.ActionSelectCreditMode,
			Reason: "mode_selection_consumed",
		}
	}

	rows, err := f.ledger.SetCreditMode(ctx, held.UserID, held.PaymentMethodID, credit)
	if err != nil {
		return f.failed(ctx, conversant, locale, domain.ActionSelectCreditMode, err)
	}

	var reply domain.Reply
	switch {
	case rows == 0:
		f.logger.Info("credit mode was already set", zap.String("payment_method_id", held.PaymentMethodID))
		reply = f.text(locale, i18n.KeyModeAlreadySet, held.PaymentMethodName)
	case credit:
		reply = f.text(locale, i18n.KeyModeSetCredit, held.PaymentMethodName)
	default:
		reply = f.text(locale, i18n.KeyModeSetSimple, held.PaymentMethodName)
	}
	if rows > 0 {
		f.analytics.Capture(metrics.EventCreditModeSelected, held.UserID, map[string]any{
			"payment_method_id": held.PaymentMethodID,
			"credit":            credit,
		})
	}

	step := Step{Reply: reply, Action: domain.ActionSelectCreditMode, Success: true}
	if held.Pending == nil {
		step.Reply = reply.Append(f.text(locale, i18n.KeyModeNothingPending))
		return step
	}
	replay := *held.Pending
	step.Replay = &replay
	return step
}
