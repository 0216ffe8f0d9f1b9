// Package handler adapts the messaging gateway webhook to the message service.
package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"finbot/internal/domain"
	"finbot/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// MessageHandler is the message service as seen by the webhook.
type MessageHandler interface {
	HandleMessage(ctx context.Context, in usecase.InboundMessage) (domain.Reply, error)
}

type inboundRequest struct {
	From      string        `json:"from"`
	Text      string        `json:"text"`
	IsGroup   bool          `json:"isGroup"`
	Mentioned bool          `json:"mentioned"`
	Image     *inboundImage `json:"image"`
}

type inboundImage struct {
	URL      string `json:"url"`
	MIMEType string `json:"mimeType"`
}

// replyResponse carries the messages the gateway sends back to the
// conversant, in order.
type replyResponse struct {
	Replies []string `json:"replies"`
	Error   string   `json:"error,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

var newCorrelationID = func() string { return uuid.NewString() }

type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

type Handler struct {
	svc    MessageHandler
	logger *zap.Logger
}

func NewHandler(svc MessageHandler, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: message service must not be nil")
	}
	h := &Handler{svc: svc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle answers one webhook call. Replies go back in the response body; a
// message the service rejected with a reply still gets 200 so the gateway
// delivers it.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	logger := h.logger.With(zap.String("correlation_id", corrID))

	in, err := decodeInbound(req)
	if err != nil {
		logger.Info("rejected webhook body", zap.Error(err))
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"}), nil
	}

	reply, err := h.svc.HandleMessage(ctx, in)
	if err == nil {
		return jsonResponse(http.StatusOK, corrID, replyResponse{Replies: messages(reply)}), nil
	}

	var ue *usecase.Error
	if !errors.As(err, &ue) {
		logger.Error("message handling failed", zap.Error(err))
		return jsonResponse(http.StatusInternalServerError, corrID, errorResponse{Error: string(usecase.ErrorInternal)}), nil
	}
	logger.Warn("message rejected", zap.String("code", string(ue.Code)), zap.String("reason", ue.Reason), zap.Error(ue.Err))
	if !reply.Empty() {
		return jsonResponse(http.StatusOK, corrID, replyResponse{Replies: reply.Messages, Error: string(ue.Code)}), nil
	}
	return jsonResponse(statusFor(ue.Code), corrID, errorResponse{Error: string(ue.Code), Reason: ue.Reason}), nil
}

func decodeInbound(req events.APIGatewayProxyRequest) (usecase.InboundMessage, error) {
	body := req.Body
	if req.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return usecase.InboundMessage{}, fmt.Errorf("decode base64 body: %w", err)
		}
		body = string(raw)
	}

	var in inboundRequest
	dec := json.NewDecoder(bytes.NewBufferString(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return usecase.InboundMessage{}, fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return usecase.InboundMessage{}, errors.New("decode body: trailing data")
	}

	msg := usecase.InboundMessage{
		From:      in.From,
		Text:      in.Text,
		IsGroup:   in.IsGroup,
		Mentioned: in.Mentioned,
	}
	if in.Image != nil && strings.TrimSpace(in.Image.URL) != "" {
		msg.Image = &usecase.Image{URL: in.Image.URL, MIMEType: in.Image.MIMEType}
	}
	return msg, nil
}

func messages(r domain.Reply) []string {
	if r.Empty() {
		return []string{}
	}
	return r.Messages
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return newCorrelationID()
}

func jsonResponse(status int, corrID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(raw),
	}
}
