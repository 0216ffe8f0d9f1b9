package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"finbot/internal/domain"
	"finbot/internal/usecase"
)

type stubService struct {
	reply domain.Reply
	err   error
	in    usecase.InboundMessage
	calls int
}

func (s *stubService) HandleMessage(_ context.Context, in usecase.InboundMessage) (domain.Reply, error) {
	s.calls++
	s.in = in
	return s.reply, s.err
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/webhook",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	svc := &stubService{reply: domain.Reply{Messages: []string{"✅ Gasto registrado", "Cartão Nubank no modo crédito."}}}
	h, err := NewHandler(svc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"from":"whatsapp:+5511999990000","text":"gastei 50 no almoço"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.InboundMessage{From: "whatsapp:+5511999990000", Text: "gastei 50 no almoço"}, svc.in)

	out := parseBody[replyResponse](t, resp.Body)
	require.Equal(t, svc.reply.Messages, out.Replies)
	require.Empty(t, out.Error)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_EmptyReplyIsEmptyList(t *testing.T) {
	h, err := NewHandler(&stubService{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"from":"5511","text":"bom dia","isGroup":true}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"replies":[]}`, resp.Body)
}

func TestHandle_ImageAndBase64Body(t *testing.T) {
	svc := &stubService{}
	h, err := NewHandler(svc)
	require.NoError(t, err)

	event := makeEvent(base64.StdEncoding.EncodeToString([]byte(`{"from":"5511","image":{"url":"https://media/1","mimeType":"image/jpeg"}}`)))
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.in.Image)
	require.Equal(t, usecase.Image{URL: "https://media/1", MIMEType: "image/jpeg"}, *svc.in.Image)
}

func TestHandle_InvalidBody(t *testing.T) {
	for _, body := range []string{`not-json`, `{"from":"1","text":"x","extra":1}`, `{"from":"1"} {"from":"2"}`} {
		svc := &stubService{}
		h, err := NewHandler(svc)
		require.NoError(t, err)

		resp, err := h.Handle(context.Background(), makeEvent(body))
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		require.Zero(t, svc.calls)

		out := parseBody[errorResponse](t, resp.Body)
		require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
	}
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_message"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "image_rate_limited"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "image_read_error"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "x"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := NewHandler(&stubService{err: tc.err})
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeEvent(`{"from":"5511","text":"oi"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_RejectionWithReplyIsDelivered(t *testing.T) {
	svc := &stubService{
		reply: domain.Text("Mensagem muito longa. Envie até 1000 caracteres."),
		err:   &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "message_too_long"},
	}
	h, err := NewHandler(svc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"from":"5511","text":"..."}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[replyResponse](t, resp.Body)
	require.Equal(t, svc.reply.Messages, out.Replies)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h, err := NewHandler(&stubService{reply: domain.Text("ok")})
	require.NoError(t, err)

	event := makeEvent(`{"from":"5511","text":"oi"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestHandle_GeneratesCorrelationID(t *testing.T) {
	prev := newCorrelationID
	newCorrelationID = func() string { return "generated-1" }
	t.Cleanup(func() { newCorrelationID = prev })

	h, err := NewHandler(&stubService{})
	require.NoError(t, err)
	resp, err := h.Handle(context.Background(), makeEvent(`{"from":"5511","text":"oi"}`))
	require.NoError(t, err)
	require.Equal(t, "generated-1", resp.Headers["X-Correlation-Id"])
}
