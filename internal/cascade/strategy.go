// Package cascade turns one inbound message into one reply: an ordered list
// of strategies is tried until one resolves the message, the winner's intent
// is executed, and exactly one parsing metric is recorded for the message.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"finbot/internal/auth"
	"finbot/internal/domain"
	"finbot/internal/flows"
	"finbot/internal/i18n"
)

// Turn is what the strategies see of the message being resolved.
type Turn struct {
	Conversant string
	Text       string
	Auth       auth.Result
	// Pending is the conversant's context as read before the first strategy.
	Pending domain.PendingContext
	// Local is the rule-based parser's reading, set by the local parser
	// strategy for the strategies after it.
	Local *domain.ResolvedIntent
}

// Locale picks the reply language: the user's, else the pending flow's.
func (t *Turn) Locale() string {
	if t.Auth.Record.Locale != "" {
		return t.Auth.Record.Locale
	}
	if t.Pending != nil && t.Pending.Meta().Locale != "" {
		return t.Pending.Meta().Locale
	}
	return i18n.DefaultLocale
}

// OutcomeKind says whether a strategy claimed the message.
type OutcomeKind int

const (
	// Decline passes the message to the next strategy.
	Decline OutcomeKind = iota
	// Resolved hands an intent to the executor.
	Resolved
	// Replied answers directly; used by flows that consume the message.
	Replied
)

// Outcome is the result of one strategy.
type Outcome struct {
	Kind OutcomeKind

	Intent domain.ResolvedIntent

	Reply   domain.Reply
	Action  domain.Action
	Success bool
	Reason  string
	// Replay is executed after a Replied outcome, its reply appended.
	Replay *domain.ResolvedIntent

	// AfterExecute observes the execution of a Resolved intent.
	AfterExecute func(ctx context.Context, res domain.ExecutionResult)
}

// Strategy is one interpretation method. A returned error is terminal for
// the message.
type Strategy interface {
	Name() string
	TryResolve(ctx context.Context, turn *Turn) (Outcome, error)
}

func declined() Outcome {
	return Outcome{Kind: Decline}
}

func resolvedWith(intent domain.ResolvedIntent) Outcome {
	return Outcome{Kind: Resolved, Intent: intent}
}

func fromStep(s flows.Step) Outcome {
	return Outcome{
		Kind:    Replied,
		Reply:   s.Reply,
		Action:  s.Action,
		Success: s.Success,
		Reason:  s.Reason,
		Replay:  s.Replay,
	}
}

// Error is a strategy failure with the reason recorded in the metric.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cascade: %s", e.Reason)
	}
	return fmt.Sprintf("cascade: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func reasonOf(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Reason != "" {
		return se.Reason
	}
	return "strategy_error"
}

func bestEffort(logger *zap.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("best-effort operation failed", zap.String("operation", what), zap.Error(err))
	}
}
