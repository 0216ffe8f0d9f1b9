package cascade

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"finbot/internal/convstate"
	"finbot/internal/domain"
	"finbot/internal/metrics"
	"finbot/internal/parser"
)

// Completer is the external completion capability.
type Completer interface {
	Complete(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// aiFallback asks the completion capability when nothing local settled the
// message. Its failures end the cascade.
type aiFallback struct {
	completer Completer
	model     func(ctx context.Context) (string, error)
	store     convstate.Store
	patterns  PatternStore
	analytics metrics.Sink
	logger    *zap.Logger
	now       func() time.Time
}

func newAIFallback(d StrategyDeps) (*aiFallback, error) {
	if d.Model == nil {
		return nil, errors.New("cascade: model lookup must not be nil when a completer is set")
	}
	return &aiFallback{
		completer: d.Completer,
		model:     d.Model,
		store:     d.Store,
		patterns:  d.Patterns,
		analytics: d.Analytics,
		logger:    d.Logger,
		now:       d.Now,
	}, nil
}

func (*aiFallback) Name() string { return NameAIFallback }

func (s *aiFallback) TryResolve(ctx context.Context, turn *Turn) (Outcome, error) {
	if !turn.Auth.Authorized {
		return declined(), nil
	}
	model, err := s.model(ctx)
	if err != nil {
		return Outcome{}, &Error{Reason: "ai_config_error", Err: err}
	}
	raw, err := s.completer.Complete(ctx, model, buildPromptMessages(promptContext{locale: turn.Locale(), today: s.now()}, turn.Text))
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
			return Outcome{}, &Error{Reason: "ai_rate_limited", Err: err}
		}
		return Outcome{}, &Error{Reason: "ai_error", Err: err}
	}
	guess, err := parseIntentGuess(raw)
	if err != nil {
		return Outcome{}, &Error{Reason: "ai_malformed_response", Err: err}
	}
	intent := guess.toIntent()
	if !intent.Action.IsKnown() {
		s.logger.Debug("completion did not recognize the message", zap.String("action", string(intent.Action)))
		return declined(), nil
	}

	rec := turn.Auth.Record
	// Every answer can be corrected by the next message.
	armed := &domain.CorrectionContext{
		ContextMeta: domain.ContextMeta{UserID: rec.UserID, Locale: turn.Locale(), CreatedAt: s.now()},
		Intent:      intent,
	}
	bestEffort(s.logger, "arm correction context", func() error {
		return s.store.Put(ctx, turn.Conversant, armed)
	})

	out := resolvedWith(intent)
	out.AfterExecute = func(ctx context.Context, res domain.ExecutionResult) {
		if !res.Success {
			return
		}
		if res.TransactionID != "" {
			s.attachTransaction(ctx, turn.Conversant, armed, res.TransactionID)
		}
		s.learn(ctx, rec.UserID, turn.Text, intent)
	}
	return out, nil
}

// attachTransaction points the correction context at the recorded
// transaction, unless the execution replaced it with another flow.
func (s *aiFallback) attachTransaction(ctx context.Context, conversant string, armed *domain.CorrectionContext, txID string) {
	bestEffort(s.logger, "attach transaction to correction context", func() error {
		pc, ok, err := s.store.Get(ctx, conversant)
		if err != nil || !ok {
			return err
		}
		current, isCorrection := pc.(*domain.CorrectionContext)
		if !isCorrection || !current.CreatedAt.Equal(armed.CreatedAt) {
			return nil
		}
		next := *current
		next.TransactionID = txID
		return s.store.Put(ctx, conversant, &next)
	})
}

// learn stores the phrasing so the next identical message skips the
// completion call. Per-message values are not part of the pattern.
func (s *aiFallback) learn(ctx context.Context, userID, text string, intent domain.ResolvedIntent) {
	entities := intent.Entities
	entities.Amount = nil
	entities.Date = nil
	entities.TransactionID = ""
	lp := domain.LearnedPattern{
		UserID:     userID,
		Pattern:    parser.Generalize(text),
		Action:     intent.Action,
		Entities:   entities,
		Confidence: intent.Confidence,
		UpdatedAt:  s.now(),
	}
	bestEffort(s.logger, "save learned pattern", func() error {
		return s.patterns.SavePattern(ctx, lp)
	})
	s.analytics.Capture(metrics.EventPatternLearned, userID, map[string]any{
		"action":  string(intent.Action),
		"pattern": lp.Pattern,
	})
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
