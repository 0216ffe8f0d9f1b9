// Package usecase is the entry point for one inbound chat message.
package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"finbot/internal/domain"
	"finbot/internal/i18n"
)

const defaultMaxMessageLength = 1000

// Resolver interprets and executes a text message.
type Resolver interface {
	Resolve(ctx context.Context, conversant, text string) domain.Reply
}

// ImageReader turns a receipt or screenshot into text the resolver can read.
type ImageReader interface {
	ReadImage(ctx context.Context, img Image) (string, error)
}

// MetricRecorder stores one parsing metric per handled message.
type MetricRecorder interface {
	Record(ctx context.Context, m domain.ParsingMetric)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, domain.ParsingMetric) {}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Image is an attachment as announced by the messaging gateway.
type Image struct {
	URL      string
	MIMEType string
}

// InboundMessage is one message received from the messaging gateway.
type InboundMessage struct {
	From      string
	Text      string
	Image     *Image
	IsGroup   bool
	Mentioned bool
}

// Options tunes a Service.
type Options struct {
	// Images may be nil; image messages then get a localized refusal.
	Images ImageReader
	// Metrics records messages answered before resolution. The resolver
	// records the others.
	Metrics          MetricRecorder
	DefaultLocale    string
	MaxMessageLength int
	Logger           *zap.Logger
}

// Service handles inbound messages.
type Service struct {
	resolver      Resolver
	images        ImageReader
	metrics       MetricRecorder
	tr            i18n.Translator
	defaultLocale string
	maxLen        int
	logger        *zap.Logger
}

func NewService(r Resolver, tr i18n.Translator, opts Options) (*Service, error) {
	if r == nil {
		return nil, errors.New("usecase: resolver must not be nil")
	}
	if tr == nil {
		return nil, errors.New("usecase: translator must not be nil")
	}
	s := &Service{
		resolver:      r,
		images:        opts.Images,
		metrics:       opts.Metrics,
		tr:            tr,
		defaultLocale: strings.TrimSpace(opts.DefaultLocale),
		maxLen:        opts.MaxMessageLength,
		logger:        opts.Logger,
	}
	if s.defaultLocale == "" {
		s.defaultLocale = i18n.DefaultLocale
	}
	if s.maxLen <= 0 {
		s.maxLen = defaultMaxMessageLength
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	return s, nil
}

// HandleMessage returns the replies for one message. An empty reply means
// nothing should be sent. A returned *Error classifies a rejected message;
// the reply, when not empty, still goes to the conversant.
func (s *Service) HandleMessage(ctx context.Context, in InboundMessage) (domain.Reply, error) {
	from := strings.TrimSpace(in.From)
	if from == "" {
		return domain.Reply{}, newError(ErrorInvalidInput, "missing_sender", nil)
	}
	if in.IsGroup && !in.Mentioned {
		return domain.Reply{}, nil
	}

	text := strings.TrimSpace(in.Text)
	if in.Image != nil {
		read, reply, reason, err := s.readImage(ctx, from, *in.Image)
		if reason != "" {
			s.reject(ctx, from, text, reason)
			return reply, err
		}
		text = strings.TrimSpace(read + "\n" + text)
	}

	if text == "" {
		s.reject(ctx, from, text, "empty_message")
		return domain.Reply{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(text) > s.maxLen {
		s.reject(ctx, from, text, "message_too_long")
		return s.text(i18n.KeyMessageTooLong, s.maxLen), newError(ErrorInvalidInput, "message_too_long", nil)
	}
	return s.resolver.Resolve(ctx, from, text), nil
}

// reject records the metric of a message answered without resolution.
func (s *Service) reject(ctx context.Context, from, text, reason string) {
	s.metrics.Record(ctx, domain.ParsingMetric{
		Conversant:    from,
		Message:       text,
		Strategy:      "none",
		Action:        domain.ActionUnknown,
		FailureReason: reason,
	})
}

// readImage returns the text read from img, or the reply to send instead
// and the reason it was not read.
func (s *Service) readImage(ctx context.Context, from string, img Image) (string, domain.Reply, string, error) {
	if s.images == nil {
		return "", s.text(i18n.KeyImageUnsupported), "image_unsupported", nil
	}
	read, err := s.images.ReadImage(ctx, img)
	if err != nil {
		s.logger.Warn("image read failed", zap.String("conversant", from), zap.String("mime_type", img.MIMEType), zap.Error(err))
		if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
			return "", s.text(i18n.KeyImageUnreadable), "image_rate_limited", newError(ErrorRateLimited, "image_rate_limited", err)
		}
		return "", s.text(i18n.KeyImageUnreadable), "image_read_error", newError(ErrorUpstream, "image_read_error", err)
	}
	if strings.TrimSpace(read) == "" {
		return "", s.text(i18n.KeyImageUnreadable), "image_unreadable", nil
	}
	return read, domain.Reply{}, "", nil
}

func (s *Service) text(key string, args ...any) domain.Reply {
	return domain.Text(s.tr.T(s.defaultLocale, key, args...))
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
