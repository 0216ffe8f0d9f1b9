package cascade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"finbot/internal/auth"
	"finbot/internal/convstate"
	"finbot/internal/domain"
	"finbot/internal/flows"
	"finbot/internal/i18n"
	"finbot/internal/metrics"
	"finbot/internal/parser"
)

// Strategy names, as recorded in metrics.
const (
	NameModeSelection         = "mode_selection_flow"
	NameInstallmentCreation   = "installment_creation_flow"
	NameInstallmentDeletion   = "installment_deletion_flow"
	NameCorrectionState       = "correction_state"
	NameDuplicateConfirmation = "duplicate_confirmation"
	NameCorrectionDetector    = "correction_detector"
	NameLocalParser           = "local_parser"
	NameLearnedPattern        = "learned_pattern"
	NameLocalNLP              = "local_nlp"
	NameAIFallback            = "ai_fallback"
)

const (
	// correctionThreshold is the confidence above which an explicit
	// correction command wins.
	correctionThreshold = 0.5
	// acceptThreshold is the confidence from which the local parser is
	// trusted without asking the completion capability.
	acceptThreshold = 0.8
)

// ModeFlow continues a pending credit mode selection.
type ModeFlow interface {
	Continue(ctx context.Context, conversant, text string, pc *domain.ModeSelectionContext) flows.Step
}

// InstallmentFlow continues a pending card choice.
type InstallmentFlow interface {
	Continue(ctx context.Context, conversant, text string, pc *domain.InstallmentCreationContext) flows.Step
}

// DeletionFlow continues a pending installment deletion.
type DeletionFlow interface {
	Continue(ctx context.Context, conversant, text string, pc *domain.InstallmentDeletionContext) flows.Step
}

// PatternStore keeps what the completion capability taught about a user's
// phrasing.
type PatternStore interface {
	FindPattern(ctx context.Context, userID, pattern string) (domain.LearnedPattern, bool, error)
	SavePattern(ctx context.Context, lp domain.LearnedPattern) error
	IncrementPatternUsage(ctx context.Context, userID, pattern string) error
}

// StrategyDeps are the collaborators of the standard strategy list.
type StrategyDeps struct {
	Parser       *parser.Parser
	Store        convstate.Store
	Patterns     PatternStore
	Modes        ModeFlow
	Installments InstallmentFlow
	Deletions    DeletionFlow
	// Completer may be nil, which disables the AI fallback.
	Completer  Completer
	Model      func(ctx context.Context) (string, error)
	Translator i18n.Translator
	Analytics  metrics.Sink
	Logger     *zap.Logger
	Now        func() time.Time
}

// Strategies builds the cascade in its fixed priority order.
func Strategies(d StrategyDeps) ([]Strategy, error) {
	switch {
	case d.Parser == nil:
		return nil, errors.New("cascade: parser must not be nil")
	case d.Store == nil:
		return nil, errors.New("cascade: store must not be nil")
	case d.Patterns == nil:
		return nil, errors.New("cascade: pattern store must not be nil")
	case d.Modes == nil || d.Installments == nil || d.Deletions == nil:
		return nil, errors.New("cascade: flows must not be nil")
	case d.Translator == nil:
		return nil, errors.New("cascade: translator must not be nil")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Analytics == nil {
		d.Analytics = metrics.NewAnalytics(d.Logger)
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	guard := flowGuard{store: d.Store, tr: d.Translator, logger: d.Logger}
	list := []Strategy{
		modeSelectionFlow{flowGuard: guard, flow: d.Modes},
		installmentCreationFlow{flowGuard: guard, flow: d.Installments},
		installmentDeletionFlow{flowGuard: guard, flow: d.Deletions},
		&correctionState{parser: d.Parser, store: d.Store, tr: d.Translator, logger: d.Logger},
		&duplicateConfirmation{parser: d.Parser, store: d.Store, tr: d.Translator, logger: d.Logger},
		correctionDetector{parser: d.Parser},
		localParser{parser: d.Parser},
		&learnedPattern{parser: d.Parser, patterns: d.Patterns, logger: d.Logger},
		localNLP{},
	}
	if d.Completer != nil {
		ai, err := newAIFallback(d)
		if err != nil {
			return nil, err
		}
		list = append(list, ai)
	}
	return list, nil
}

// flowGuard re-checks the session before a pending flow touches the ledger.
// The flow was started by an authorized message; this one may not be.
type flowGuard struct {
	store  convstate.Store
	tr     i18n.Translator
	logger *zap.Logger
}

// deny answers the turn when it may not continue a flow ending in action.
// A failed lookup keeps the context so the user can retry.
func (g flowGuard) deny(ctx context.Context, turn *Turn, action domain.Action) (Outcome, bool) {
	locale := turn.Locale()
	out := Outcome{Kind: Replied, Action: action}
	switch {
	case !turn.Auth.Authorized && turn.Auth.Err != nil:
		out.Reply = domain.Text(g.tr.T(locale, i18n.KeyProcessingError))
		out.Reason = "auth_error"
		return out, true
	case !turn.Auth.Authorized:
		out.Reply = domain.Text(g.tr.T(locale, i18n.KeyLoginRequired))
		out.Reason = "authentication_required"
	case !auth.HasPermission(turn.Auth.Record.Permissions, action):
		label := g.tr.T(locale, i18n.ActionKey(string(action)))
		out.Reply = domain.Text(g.tr.T(locale, i18n.KeyPermissionDenied, label))
		out.Reason = "permission_denied"
	default:
		return Outcome{}, false
	}
	clearStale(ctx, g.store, g.logger, turn)
	return out, true
}

type modeSelectionFlow struct {
	flowGuard
	flow ModeFlow
}

func (modeSelectionFlow) Name() string { return NameModeSelection }

func (s modeSelectionFlow) TryResolve(ctx context.Context, turn *Turn) (Outcome, error) {
	pc, ok := turn.Pending.(*domain.ModeSelectionContext)
	if !ok {
		return declined(), nil
	}
	if out, denied := s.deny(ctx, turn, domain.ActionSetCreditMode); denied {
		return out, nil
	}
	return fromStep(s.flow.Continue(ctx, turn.Conversant, turn.Text, pc)), nil
}

type installmentCreationFlow struct {
	flowGuard
	flow InstallmentFlow
}

func (installmentCreationFlow) Name() string { return NameInstallmentCreation }

func (s installmentCreationFlow) TryResolve(ctx context.Context, turn *Turn) (Outcome, error) {
	pc, ok := turn.Pending.(*domain.InstallmentCreationContext)
	if !ok {
		return declined(), nil
	}
	if out, denied := s.deny(ctx, turn, domain.ActionCreateInstallment); denied {
		return out, nil
	}
	return fromStep(s.flow.Continue(ctx, turn.Conversant, turn.Text, pc)), nil
}

type installmentDeletionFlow struct {
	flowGuard
	flow DeletionFlow
}

func (installmentDeletionFlow) Name() string { return NameInstallmentDeletion }

func (s installmentDeletionFlow) TryResolve(ctx context.Context, turn *Turn) (Outcome, error) {
	pc, ok := turn.Pending.(*domain.InstallmentDeletionContext)
	if !ok {
		return declined(), nil
	}
	if out, denied := s.deny(ctx, turn, domain.ActionDeleteInstallment); denied {
		return out, nil
	}
	return fromStep(s.flow.Continue(ctx, turn.Conversant, turn.Text, pc)), nil
}

// take consumes the pending context. ok is false when another message got
// to it first.
func take(ctx context.Context, store convstate.Store, conversant string) (domain.PendingContext, bool, error) {
	pc, ok, err := store.TakeAndClear(ctx, conversant)
	if err != nil {
		return nil, false, fmt.Errorf("take pending context: %w", err)
	}
	return pc, ok, nil
}

// persistenceFailure answers a state store failure inside a strategy.
func persistenceFailure(tr i18n.Translator, logger *zap.Logger, turn *Turn, action domain.Action, err error) Outcome {
	logger.Error("conversation state failed", zap.String("conversant", turn.Conversant), zap.Error(err))
	return Outcome{
		Kind:   Replied,
		Reply:  domain.Text(tr.T(turn.Locale(), i18n.KeyGenericError)),
		Action: action,
		Reason: fmt.Sprintf("persistence_error: %v", err),
	}
}

// clearStale drops a context the message did not answer.
func clearStale(ctx context.Context, store convstate.Store, logger *zap.Logger, turn *Turn) {
	bestEffort(logger, "clear unanswered context", func() error {
		return store.Clear(ctx, turn.Conversant)
	})
}
