package executor

import (
	"context"

	"go.uber.org/zap"

	"finbot/internal/auth"
	"finbot/internal/domain"
	"finbot/internal/i18n"
	"finbot/internal/textnorm"
)

// setCreditMode changes how a card is tracked. Without an explicit mode it
// starts the selection flow. An explicit change overwrites whatever is
// stored.
func (e *Executor) setCreditMode(ctx context.Context, req request) domain.ExecutionResult {
	ent := req.intent.Entities
	if ent.PaymentMethod == "" {
		return domain.Failed(e.text(req.locale, i18n.KeyCardRequired), "card_required")
	}
	methods, err := e.ledger.ListPaymentMethods(ctx, req.rec.UserID)
	if err != nil {
		return e.failed(req, "ListPaymentMethods", err)
	}
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.Name
	}
	i, ok := textnorm.Match(ent.PaymentMethod, names)
	if !ok {
		return domain.Failed(e.text(req.locale, i18n.KeyCardNotFound, ent.PaymentMethod), "card_not_found")
	}
	pm := methods[i]
	if !pm.IsCredit() {
		return domain.Failed(e.text(req.locale, i18n.KeyNotCreditCard, pm.Name), "not_credit_card")
	}
	if ent.CreditMode == nil {
		return e.modes.Start(ctx, req.conversant, req.rec, pm, nil)
	}

	if err := e.ledger.UpdateCreditMode(ctx, req.rec.UserID, pm.ID, *ent.CreditMode); err != nil {
		return e.failed(req, "UpdateCreditMode", err)
	}
	key := i18n.KeyModeSetSimple
	if *ent.CreditMode {
		key = i18n.KeyModeSetCredit
	}
	return domain.Succeeded(e.text(req.locale, key, pm.Name))
}

func (e *Executor) logout(ctx context.Context, req request) domain.ExecutionResult {
	phone := auth.NormalizePhone(req.conversant)
	bestEffort(e.logger, "clear state on logout", func() error {
		return e.store.Clear(ctx, req.conversant)
	})
	deleted, err := e.ledger.DeleteLegacySession(ctx, phone)
	if err != nil {
		return e.failed(req, "DeleteLegacySession", err)
	}
	if !deleted {
		return domain.Failed(e.text(req.locale, i18n.KeyNoSession), "no_session")
	}
	e.logger.Info("legacy session removed", zap.String("conversant", phone))
	return domain.Succeeded(e.text(req.locale, i18n.KeyLoggedOut))
}

func (e *Executor) cancel(ctx context.Context, req request) domain.ExecutionResult {
	has, err := e.store.Has(ctx, req.conversant)
	if err != nil {
		return e.failed(req, "HasState", err)
	}
	if !has {
		return domain.Succeeded(e.text(req.locale, i18n.KeyNothingToCancel))
	}
	if err := e.store.Clear(ctx, req.conversant); err != nil {
		return e.failed(req, "ClearState", err)
	}
	return domain.Succeeded(e.text(req.locale, i18n.KeyCancelled))
}
