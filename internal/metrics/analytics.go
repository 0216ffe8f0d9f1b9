package metrics

import (
	"sort"

	"go.uber.org/zap"
)

// Event names sent to the analytics sink.
const (
	EventTransactionCreated = "transaction_created"
	EventInstallmentCreated = "installment_created"
	EventInstallmentDeleted = "installment_deleted"
	EventCreditModeSelected = "credit_mode_selected"
	EventPatternLearned     = "pattern_learned"
)

// Sink is a fire-and-forget analytics destination.
type Sink interface {
	Capture(event, userID string, props map[string]any)
}

// Analytics emits events as structured log lines, which the log pipeline
// forwards to the analytics store.
type Analytics struct {
	logger *zap.Logger
}

// NewAnalytics creates a log-backed Sink. A nil logger discards events.
func NewAnalytics(logger *zap.Logger) *Analytics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analytics{logger: logger.Named("analytics")}
}

func (a *Analytics) Capture(event, userID string, props map[string]any) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]zap.Field, 0, len(props)+2)
	fields = append(fields, zap.String("event", event), zap.String("user_id", userID))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, props[k]))
	}
	a.logger.Info("analytics event", fields...)
}
