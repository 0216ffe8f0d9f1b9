// Package metrics records one ParsingMetric per processed message and feeds
// product analytics.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"finbot/internal/domain"
)

// Writer persists parsing metrics.
type Writer interface {
	PutMetric(ctx context.Context, m domain.ParsingMetric) error
}

// Recorder writes metrics and never fails the caller: a rejected write is
// logged and dropped.
type Recorder struct {
	writer Writer
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder over writer.
func NewRecorder(writer Writer, logger *zap.Logger) (*Recorder, error) {
	if writer == nil {
		return nil, errors.New("metrics: writer must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{writer: writer, logger: logger, now: time.Now}, nil
}

var newUUID = func() string {
	return uuid.NewString()
}

// Record stamps m with an id and creation time and waits for the write.
func (r *Recorder) Record(ctx context.Context, m domain.ParsingMetric) {
	if m.ID == "" {
		m.ID = newUUID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}
	fields := []zap.Field{
		zap.String("conversant", m.Conversant),
		zap.String("strategy", m.Strategy),
		zap.String("action", string(m.Action)),
		zap.Float64("confidence", m.Confidence),
		zap.Bool("success", m.Success),
		zap.Duration("duration", m.Duration),
	}
	if m.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", m.FailureReason))
	}
	r.logger.Info("message resolved", fields...)

	if err := r.writer.PutMetric(ctx, m); err != nil {
		r.logger.Warn("parsing metric write failed", zap.String("metric_id", m.ID), zap.Error(err))
	}
}
