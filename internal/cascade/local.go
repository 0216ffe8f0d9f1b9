package cascade

import (
	"context"

	"go.uber.org/zap"

	"finbot/internal/domain"
	"finbot/internal/parser"
)

// localParser always runs and leaves its reading on the turn.
type localParser struct {
	parser *parser.Parser
}

func (localParser) Name() string { return NameLocalParser }

func (s localParser) TryResolve(_ context.Context, turn *Turn) (Outcome, error) {
	intent := s.parser.Parse(turn.Text)
	turn.Local = &intent
	return declined(), nil
}

// learnedPattern reuses what the completion capability answered for the same
// phrasing before. It only runs when the local parser could not read the
// message at all.
type learnedPattern struct {
	parser   *parser.Parser
	patterns PatternStore
	logger   *zap.Logger
}

func (*learnedPattern) Name() string { return NameLearnedPattern }

func (s *learnedPattern) TryResolve(ctx context.Context, turn *Turn) (Outcome, error) {
	if !turn.Auth.Authorized || turn.Local == nil || turn.Local.Action != domain.ActionUnknown {
		return declined(), nil
	}
	userID := turn.Auth.Record.UserID
	key := parser.Generalize(turn.Text)
	lp, ok, err := s.patterns.FindPattern(ctx, userID, key)
	if err != nil {
		s.logger.Warn("learned pattern lookup failed", zap.String("user_id", userID), zap.Error(err))
		return declined(), nil
	}
	if !ok || !lp.Action.IsKnown() {
		return declined(), nil
	}

	intent := domain.ResolvedIntent{Action: lp.Action, Confidence: lp.Confidence, Entities: lp.Entities}
	// Amounts and dates belong to this message, not to the one that taught
	// the pattern.
	current := s.parser.ExtractTransaction(turn.Text)
	intent.Entities.Amount = current.Amount
	intent.Entities.Date = current.Date

	bestEffort(s.logger, "increment pattern usage", func() error {
		return s.patterns.IncrementPatternUsage(ctx, userID, key)
	})
	return resolvedWith(intent), nil
}

// localNLP accepts a confident local reading.
type localNLP struct{}

func (localNLP) Name() string { return NameLocalNLP }

func (localNLP) TryResolve(_ context.Context, turn *Turn) (Outcome, error) {
	if turn.Local == nil || turn.Local.Action == domain.ActionUnknown || turn.Local.Confidence < acceptThreshold {
		return declined(), nil
	}
	return resolvedWith(*turn.Local), nil
}
