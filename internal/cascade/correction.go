package cascade

import (
	"context"

	"go.uber.org/zap"

	"finbot/internal/convstate"
	"finbot/internal/domain"
	"finbot/internal/i18n"
	"finbot/internal/parser"
	"finbot/internal/textnorm"
)

// correctionState applies "não, foi 45" to the intent the completion
// capability guessed for the previous message.
type correctionState struct {
	parser *parser.Parser
	store  convstate.Store
	tr     i18n.Translator
	logger *zap.Logger
}

func (*correctionState) Name() string { return NameCorrectionState }

func (s *correctionState) TryResolve(ctx context.Context, turn *Turn) (Outcome, error) {
	pc, ok := turn.Pending.(*domain.CorrectionContext)
	if !ok {
		return declined(), nil
	}
	if !parser.IsCorrection(turn.Text) {
		clearStale(ctx, s.store, s.logger, turn)
		return declined(), nil
	}
	if _, ok, err := take(ctx, s.store, turn.Conversant); err != nil {
		return persistenceFailure(s.tr, s.logger, turn, domain.ActionEditTransaction, err), nil
	} else if !ok {
		return declined(), nil
	}

	fix := s.parser.ExtractTransaction(turn.Text)
	if fix.Amount == nil && fix.Category == "" && fix.PaymentMethod == "" && fix.Date == nil {
		return Outcome{
			Kind:   Replied,
			Reply:  domain.Text(s.tr.T(turn.Locale(), i18n.KeyCorrectionNothing)),
			Action: domain.ActionEditTransaction,
			Reason: "correction_without_fields",
		}, nil
	}

	if pc.TransactionID != "" {
		fix.TransactionID = pc.TransactionID
		return resolvedWith(domain.ResolvedIntent{Action: domain.ActionEditTransaction, Confidence: 1, Entities: fix}), nil
	}
	// The guess was never recorded; run it again with the corrected fields.
	intent := pc.Intent
	merge(&intent.Entities, fix)
	return resolvedWith(intent), nil
}

func merge(dst *domain.Entities, fix domain.Entities) {
	if fix.Amount != nil {
		dst.Amount = fix.Amount
	}
	if fix.Category != "" {
		dst.Category = fix.Category
	}
	if fix.PaymentMethod != "" {
		dst.PaymentMethod = fix.PaymentMethod
	}
	if fix.Date != nil {
		dst.Date = fix.Date
	}
}

// duplicateConfirmation answers the "did you mean to record this twice"
// question.
type duplicateConfirmation struct {
	parser *parser.Parser
	store  convstate.Store
	tr     i18n.Translator
	logger *zap.Logger
}

func (*duplicateConfirmation) Name() string { return NameDuplicateConfirmation }

func (s *duplicateConfirmation) TryResolve(ctx context.Context, turn *Turn) (Outcome, error) {
	pc, ok := turn.Pending.(*domain.DuplicateConfirmationContext)
	if !ok {
		return declined(), nil
	}

	yes := textnorm.OneOf(turn.Text, "sim", "s", "yes", "y") || textnorm.IsConfirm(turn.Text)
	no := textnorm.OneOf(turn.Text, "nao", "n", "no") || textnorm.IsCancel(turn.Text)
	amount := s.parser.ExtractTransaction(turn.Text).Amount
	if !yes && !no && (amount == nil || !amount.IsPositive()) {
		clearStale(ctx, s.store, s.logger, turn)
		return declined(), nil
	}

	if _, ok, err := take(ctx, s.store, turn.Conversant); err != nil {
		return persistenceFailure(s.tr, s.logger, turn, pc.Intent.Action, err), nil
	} else if !ok {
		return declined(), nil
	}

	if no {
		return Outcome{
			Kind:    Replied,
			Reply:   domain.Text(s.tr.T(turn.Locale(), i18n.KeyDuplicateRejected)),
			Action:  domain.ActionRejectDuplicate,
			Success: true,
		}, nil
	}
	intent := pc.Intent
	intent.Entities.Force = true
	if !yes {
		intent.Entities.Amount = amount
	}
	return resolvedWith(intent), nil
}

// correctionDetector resolves explicit edit and delete commands that name a
// transaction ("corrige #A1B2C3 para 45").
type correctionDetector struct {
	parser *parser.Parser
}

func (correctionDetector) Name() string { return NameCorrectionDetector }

func (s correctionDetector) TryResolve(_ context.Context, turn *Turn) (Outcome, error) {
	intent := s.parser.DetectCorrection(turn.Text)
	if intent.Action == domain.ActionUnknown || intent.Confidence <= correctionThreshold {
		return declined(), nil
	}
	return resolvedWith(intent), nil
}
