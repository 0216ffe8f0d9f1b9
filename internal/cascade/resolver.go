package cascade

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"finbot/internal/auth"
	"finbot/internal/convstate"
	"finbot/internal/domain"
	"finbot/internal/i18n"
)

// Executor runs a resolved intent.
type Executor interface {
	Execute(ctx context.Context, conversant string, intent domain.ResolvedIntent, rec *domain.AuthorizationRecord) domain.ExecutionResult
}

// Gate identifies the conversant once per message.
type Gate interface {
	CheckAuthorization(ctx context.Context, conversant string) auth.Result
}

// MetricRecorder persists the per-message metric.
type MetricRecorder interface {
	Record(ctx context.Context, m domain.ParsingMetric)
}

// Config wires a Resolver.
type Config struct {
	Strategies []Strategy
	Gate       Gate
	Store      convstate.Store
	Executor   Executor
	Metrics    MetricRecorder
	Translator i18n.Translator
	Logger     *zap.Logger
	Now        func() time.Time
}

// Resolver runs the strategy cascade.
type Resolver struct {
	strategies []Strategy
	gate       Gate
	store      convstate.Store
	exec       Executor
	metrics    MetricRecorder
	tr         i18n.Translator
	logger     *zap.Logger
	now        func() time.Time
}

// NewResolver creates a Resolver. The strategies run in the given order.
func NewResolver(c Config) (*Resolver, error) {
	switch {
	case len(c.Strategies) == 0:
		return nil, errors.New("cascade: at least one strategy is required")
	case c.Gate == nil:
		return nil, errors.New("cascade: gate must not be nil")
	case c.Store == nil:
		return nil, errors.New("cascade: store must not be nil")
	case c.Executor == nil:
		return nil, errors.New("cascade: executor must not be nil")
	case c.Metrics == nil:
		return nil, errors.New("cascade: metrics recorder must not be nil")
	case c.Translator == nil:
		return nil, errors.New("cascade: translator must not be nil")
	}
	r := &Resolver{
		strategies: c.Strategies,
		gate:       c.Gate,
		store:      c.Store,
		exec:       c.Executor,
		metrics:    c.Metrics,
		tr:         c.Translator,
		logger:     c.Logger,
		now:        c.Now,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Resolve interprets and executes one message. Whatever path is taken,
// exactly one metric is recorded when it returns.
func (r *Resolver) Resolve(ctx context.Context, conversant, text string) domain.Reply {
	start := r.now()
	m := domain.ParsingMetric{Conversant: conversant, Message: text, Strategy: "none", Action: domain.ActionUnknown}
	defer func() {
		m.Duration = r.now().Sub(start)
		if !m.Success && m.FailureReason == "" {
			m.FailureReason = "unspecified"
		}
		r.metrics.Record(ctx, m)
	}()

	turn := r.begin(ctx, conversant, text)
	m.UserID = turn.Auth.Record.UserID
	logger := r.logger.With(zap.String("conversant", conversant))

	for _, s := range r.strategies {
		out, err := s.TryResolve(ctx, turn)
		if err != nil {
			logger.Error("strategy failed", zap.String("strategy", s.Name()), zap.Error(err))
			m.Strategy = s.Name()
			m.FailureReason = reasonOf(err)
			return r.text(turn.Locale(), i18n.KeyProcessingError)
		}

		switch out.Kind {
		case Decline:
			continue

		case Replied:
			m.Strategy = s.Name()
			m.Action = out.Action
			m.Success = out.Success
			m.FailureReason = out.Reason
			if out.Replay == nil {
				return out.Reply
			}
			res := r.execute(ctx, turn, *out.Replay)
			m.Action = out.Replay.Action
			m.Confidence = out.Replay.Confidence
			m.Success = res.Success
			m.FailureReason = res.Reason
			return out.Reply.Append(res.Reply)

		case Resolved:
			m.Strategy = s.Name()
			m.Action = out.Intent.Action
			m.Confidence = out.Intent.Confidence
			res := r.execute(ctx, turn, out.Intent)
			if out.AfterExecute != nil {
				out.AfterExecute(ctx, res)
			}
			m.Success = res.Success
			m.FailureReason = res.Reason
			return res.Reply
		}
	}

	m.FailureReason = "no strategy matched"
	return r.text(turn.Locale(), i18n.KeyUnknownCommand)
}

// begin loads what every strategy shares. A failed state read is treated as
// no pending flow.
func (r *Resolver) begin(ctx context.Context, conversant, text string) *Turn {
	turn := &Turn{Conversant: conversant, Text: text}
	turn.Auth = r.gate.CheckAuthorization(ctx, conversant)
	if turn.Auth.Err != nil {
		r.logger.Warn("authorization lookup failed", zap.String("conversant", conversant), zap.Error(turn.Auth.Err))
	}
	pc, ok, err := r.store.Get(ctx, conversant)
	if err != nil {
		r.logger.Warn("conversation state read failed", zap.String("conversant", conversant), zap.Error(err))
	} else if ok {
		turn.Pending = pc
	}
	return turn
}

// execute short-circuits intents the conversant may not run before handing
// the rest to the executor with the record already resolved.
func (r *Resolver) execute(ctx context.Context, turn *Turn, intent domain.ResolvedIntent) domain.ExecutionResult {
	locale := turn.Locale()
	if !turn.Auth.Authorized {
		if !auth.NeedsSession(intent.Action) {
			return r.exec.Execute(ctx, turn.Conversant, intent, nil)
		}
		if turn.Auth.Err != nil {
			return domain.Failed(r.text(locale, i18n.KeyProcessingError), "auth_error")
		}
		return domain.Failed(r.text(locale, i18n.KeyLoginRequired), "authentication_required")
	}
	if !auth.HasPermission(turn.Auth.Record.Permissions, intent.Action) {
		label := r.tr.T(locale, i18n.ActionKey(string(intent.Action)))
		return domain.Failed(r.text(locale, i18n.KeyPermissionDenied, label), "permission_denied")
	}
	rec := turn.Auth.Record
	return r.exec.Execute(ctx, turn.Conversant, intent, &rec)
}

func (r *Resolver) text(locale, key string, args ...any) domain.Reply {
	return domain.Text(r.tr.T(locale, key, args...))
}
