package flows

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"finbot/internal/domain"
	"finbot/internal/i18n"
	"finbot/internal/metrics"
	"finbot/internal/money"
	"finbot/internal/textnorm"
)

// InstallmentDeletion lists active plans, takes a numbered choice and
// deletes the plan after an explicit confirmation.
type InstallmentDeletion struct {
	base
}

// NewInstallmentDeletion creates the installment deletion flow.
func NewInstallmentDeletion(d Deps) (*InstallmentDeletion, error) {
	b, err := newBase(d, "installment_deletion")
	if err != nil {
		return nil, err
	}
	return &InstallmentDeletion{base: b}, nil
}

// Start lists the active plans and waits for a selection.
func (f *InstallmentDeletion) Start(ctx context.Context, conversant string, rec domain.AuthorizationRecord) domain.ExecutionResult {
	locale := localeOf(rec.Locale)
	plans, err := f.ledger.ListInstallmentPlans(ctx, rec.UserID, domain.PlanActive)
	if err != nil {
		return resultOf(f.failed(ctx, conversant, locale, domain.ActionDeleteInstallment, err))
	}
	if len(plans) == 0 {
		return domain.Failed(f.text(locale, i18n.KeyDeletionNone), "no_installment_plans")
	}
	summaries := make([]domain.PlanSummary, len(plans))
	for i, p := range plans {
		summaries[i] = domain.PlanSummary{
			ID:           p.ID,
			Description:  p.Description,
			TotalAmount:  p.TotalAmount,
			Installments: p.Installments,
		}
	}
	pc := &domain.InstallmentDeletionContext{
		ContextMeta: f.meta(rec),
		Step:        domain.StepAwaitingSelection,
		Plans:       summaries,
	}
	if err := f.store.Put(ctx, conversant, pc); err != nil {
		return resultOf(f.failed(ctx, conversant, locale, domain.ActionDeleteInstallment, err))
	}
	return domain.Succeeded(f.list(locale, summaries))
}

// Continue advances the flow by one message.
func (f *InstallmentDeletion) Continue(ctx context.Context, conversant, text string, pc *domain.InstallmentDeletionContext) Step {
	locale := localeOf(pc.Locale)
	if textnorm.IsCancel(text) {
		return f.cancelled(ctx, conversant, locale, domain.ActionCancelInstallmentRemoval)
	}
	if pc.Step == domain.StepAwaitingConfirmation && pc.Selected != nil {
		return f.confirm(ctx, conversant, text, pc)
	}

	i, ok := textnorm.Index(text, len(pc.Plans))
	if !ok {
		return Step{
			Reply:  f.text(locale, i18n.KeyDeletionInvalidChoice).Append(f.list(locale, pc.Plans)),
			Action: domain.ActionDeleteInstallment,
			Reason: "invalid_plan_selection",
		}
	}
	selected := pc.Plans[i]
	next := *pc
	next.Step = domain.StepAwaitingConfirmation
	next.Selected = &selected
	if err := f.store.Put(ctx, conversant, &next); err != nil {
		return f.failed(ctx, conversant, locale, domain.ActionDeleteInstallment, err)
	}
	return Step{Reply: f.confirmation(locale, selected), Action: domain.ActionDeleteInstallment, Success: true}
}

func (f *InstallmentDeletion) confirm(ctx context.Context, conversant, text string, pc *domain.InstallmentDeletionContext) Step {
	locale := localeOf(pc.Locale)
	plan := *pc.Selected
	if !textnorm.IsConfirm(text) {
		return Step{
			Reply:  f.confirmation(locale, plan),
			Action: domain.ActionDeleteInstallment,
			Reason: "awaiting_confirmation",
		}
	}
	if _, ok, err := f.store.TakeAndClear(ctx, conversant); err != nil {
		return f.failed(ctx, conversant, locale, domain.ActionDeleteInstallment, err)
	} else if !ok {
		return Step{Reply: f.text(locale, i18n.KeyGenericError), Action: domain.ActionDeleteInstallment, Reason: "installment_deletion_consumed"}
	}

	if err := f.delete(ctx, pc.UserID, plan.ID); err != nil {
		return f.failed(ctx, conversant, locale, domain.ActionDeleteInstallment, err)
	}
	f.analytics.Capture(metrics.EventInstallmentDeleted, pc.UserID, map[string]any{"plan_id": plan.ID})
	return Step{
		Reply:   f.text(locale, i18n.KeyDeletionDone, plan.Description),
		Action:  domain.ActionDeleteInstallment,
		Success: true,
	}
}

// delete keeps the transactions that already paid installments, detached
// from the plan, and removes the plan with its remaining installments.
func (f *InstallmentDeletion) delete(ctx context.Context, userID, planID string) error {
	payments, err := f.ledger.ListInstallmentPayments(ctx, userID, planID)
	if err != nil {
		return fmt.Errorf("list payments: %w", err)
	}
	for _, p := range payments {
		if p.Status != domain.PaymentPaid || p.TransactionID == "" {
			continue
		}
		if err := f.ledger.UnlinkTransaction(ctx, userID, p.TransactionID); err != nil {
			return fmt.Errorf("unlink transaction %s: %w", p.TransactionID, err)
		}
		f.logger.Debug("unlinked paid installment", zap.String("plan_id", planID), zap.Int("number", p.Number))
	}
	if err := f.ledger.DeleteInstallmentPlan(ctx, userID, planID); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}

func (f *InstallmentDeletion) list(locale string, plans []domain.PlanSummary) domain.Reply {
	labels := make([]string, len(plans))
	for i, p := range plans {
		labels[i] = fmt.Sprintf("%s · %s · %dx", p.Description, money.Format(p.TotalAmount, locale), p.Installments)
	}
	return f.options(locale, i18n.KeyDeletionChoose, labels)
}

func (f *InstallmentDeletion) confirmation(locale string, p domain.PlanSummary) domain.Reply {
	return f.text(locale, i18n.KeyDeletionConfirm, p.Description, money.Format(p.TotalAmount, locale), p.Installments)
}
