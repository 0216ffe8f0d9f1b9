package flows

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finbot/internal/domain"
	"finbot/internal/i18n"
	"finbot/internal/metrics"
	"finbot/internal/money"
	"finbot/internal/textnorm"
)

// MaxInstallments is the longest plan accepted.
const MaxInstallments = 60

var newUUID = func() string {
	return uuid.NewString()
}

// InstallmentCreation creates installment plans, asking which card was used
// when more than one credit-mode card could be meant.
type InstallmentCreation struct {
	base
}

// NewInstallmentCreation creates the installment creation flow.
func NewInstallmentCreation(d Deps) (*InstallmentCreation, error) {
	b, err := newBase(d, "installment_creation")
	if err != nil {
		return nil, err
	}
	return &InstallmentCreation{base: b}, nil
}

type planRequest struct {
	userID       string
	locale       string
	amount       decimal.Decimal
	installments int
	description  string
	category     string
	firstDue     time.Time
}

// Start validates a create_installment intent and either creates the plan
// directly or stores the candidate cards and asks.
func (f *InstallmentCreation) Start(ctx context.Context, conversant string, rec domain.AuthorizationRecord, intent domain.ResolvedIntent) domain.ExecutionResult {
	locale := localeOf(rec.Locale)
	e := intent.Entities
	if e.Amount == nil || !e.Amount.IsPositive() {
		return domain.Failed(f.text(locale, i18n.KeyInstallmentInvalidAmount), "invalid_installment_amount")
	}
	if e.Installments < 1 || e.Installments > MaxInstallments {
		return domain.Failed(f.text(locale, i18n.KeyInstallmentInvalidCount), "invalid_installment_count")
	}

	methods, err := f.ledger.ListPaymentMethods(ctx, rec.UserID)
	if err != nil {
		return resultOf(f.failed(ctx, conversant, locale, domain.ActionCreateInstallment, err))
	}
	var eligible []domain.PaymentMethod
	for _, pm := range methods {
		if pm.InstallmentEligible() {
			eligible = append(eligible, pm)
		}
	}
	if len(eligible) == 0 {
		return domain.Failed(f.text(locale, i18n.KeyInstallmentNoCards), "no_eligible_cards")
	}

	req := planRequest{
		userID:       rec.UserID,
		locale:       locale,
		amount:       *e.Amount,
		installments: e.Installments,
		description:  e.Description,
		category:     e.Category,
		firstDue:     f.firstDue(e.Date),
	}
	if len(eligible) == 1 {
		return resultOf(f.create(ctx, conversant, req, eligible[0]))
	}
	names := cardNames(eligible)
	if e.PaymentMethod != "" {
		if i, ok := textnorm.Match(e.PaymentMethod, names); ok {
			return resultOf(f.create(ctx, conversant, req, eligible[i]))
		}
	}

	candidates := make([]domain.CardCandidate, len(eligible))
	for i, pm := range eligible {
		candidates[i] = domain.CardCandidate{ID: pm.ID, Name: pm.Name}
	}
	pc := &domain.InstallmentCreationContext{
		ContextMeta:  f.meta(rec),
		Amount:       req.amount,
		Installments: req.installments,
		Description:  req.description,
		Category:     req.category,
		FirstDueDate: req.firstDue,
		Candidates:   candidates,
	}
	if err := f.store.Put(ctx, conversant, pc); err != nil {
		return resultOf(f.failed(ctx, conversant, locale, domain.ActionCreateInstallment, err))
	}
	return domain.Succeeded(f.options(locale, i18n.KeyInstallmentChooseCard, names))
}

// Continue handles the card choice.
func (f *InstallmentCreation) Continue(ctx context.Context, conversant, text string, pc *domain.InstallmentCreationContext) Step {
	locale := localeOf(pc.Locale)
	if textnorm.IsCancel(text) {
		return f.cancelled(ctx, conversant, locale, domain.ActionCancelInstallment)
	}
	names := make([]string, len(pc.Candidates))
	for i, c := range pc.Candidates {
		names[i] = c.Name
	}
	i, ok := textnorm.Select(text, names)
	if !ok {
		return Step{
			Reply: f.text(locale, i18n.KeyInstallmentNoMatch).
				Append(f.options(locale, i18n.KeyInstallmentChooseCard, names)),
			Action: domain.ActionCreateInstallment,
			Reason: "no_card_match",
		}
	}

	if _, ok, err := f.store.TakeAndClear(ctx, conversant); err != nil {
		return f.failed(ctx, conversant, locale, domain.ActionCreateInstallment, err)
	} else if !ok {
		return Step{Reply: f.text(locale, i18n.KeyGenericError), Action: domain.ActionCreateInstallment, Reason: "installment_creation_consumed"}
	}
	req := planRequest{
		userID:       pc.UserID,
		locale:       locale,
		amount:       pc.Amount,
		installments: pc.Installments,
		description:  pc.Description,
		category:     pc.Category,
		firstDue:     pc.FirstDueDate,
	}
	card := domain.PaymentMethod{ID: pc.Candidates[i].ID, Name: pc.Candidates[i].Name}
	return f.create(ctx, conversant, req, card)
}

func (f *InstallmentCreation) create(ctx context.Context, conversant string, req planRequest, card domain.PaymentMethod) Step {
	parts, err := money.Split(req.amount, req.installments)
	if err != nil {
		return Step{Reply: f.text(req.locale, i18n.KeyInstallmentInvalidCount), Action: domain.ActionCreateInstallment, Reason: "invalid_installment_count"}
	}
	plan := domain.InstallmentPlan{
		ID:                newUUID(),
		UserID:            req.userID,
		PaymentMethodID:   card.ID,
		Description:       req.description,
		Category:          req.category,
		TotalAmount:       req.amount,
		InstallmentAmount: parts[0],
		Installments:      req.installments,
		FirstDueDate:      req.firstDue,
		Status:            domain.PlanActive,
		CreatedAt:         f.now(),
	}
	payments := make([]domain.InstallmentPayment, len(parts))
	for i, amount := range parts {
		payments[i] = domain.InstallmentPayment{
			PlanID:  plan.ID,
			Number:  i + 1,
			Amount:  amount,
			DueDate: req.firstDue.AddDate(0, i, 0),
			Status:  domain.PaymentPending,
		}
	}
	if err := f.ledger.CreateInstallmentPlan(ctx, plan, payments); err != nil {
		return f.failed(ctx, conversant, req.locale, domain.ActionCreateInstallment, err)
	}
	f.analytics.Capture(metrics.EventInstallmentCreated, req.userID, map[string]any{
		"plan_id":      plan.ID,
		"installments": plan.Installments,
		"total":        plan.TotalAmount.String(),
	})
	return Step{
		Reply: f.text(req.locale, i18n.KeyInstallmentCreated,
			plan.Description,
			money.Format(plan.TotalAmount, req.locale),
			plan.Installments,
			money.Format(plan.InstallmentAmount, req.locale),
			card.Name),
		Action:  domain.ActionCreateInstallment,
		Success: true,
	}
}

// firstDue is the given purchase date or today, at midnight UTC.
func (f *InstallmentCreation) firstDue(date *time.Time) time.Time {
	d := f.now().UTC()
	if date != nil {
		d = *date
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func cardNames(methods []domain.PaymentMethod) []string {
	names := make([]string, len(methods))
	for i, pm := range methods {
		names[i] = pm.Name
	}
	return names
}
