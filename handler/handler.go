package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"order-agent/internal/domain"
	"order-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// ChatService is the conversation surface exposed over HTTP.
type ChatService interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.Reply, error)
	Menu(ctx context.Context) ([]domain.Product, error)
}

type Handler struct {
	svc ChatService
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

type chatResponse struct {
	Response  string       `json:"response"`
	SessionID string       `json:"sessionId"`
	State     domain.State `json:"state"`
	Order     domain.Order `json:"order"`
}

type menuResponse struct {
	Products []domain.Product `json:"products"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func NewHandler(svc ChatService) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: chat service must not be nil")
	}
	return &Handler{svc: svc}, nil
}

// Handle routes an API Gateway proxy request. Errors are always reported in
// the response; the returned error is reserved for the Lambda runtime.
func (h *Handler) Handle(ctx context.Context, e events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := time.Now()
	correlationID := headerValue(e.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	var resp events.APIGatewayProxyResponse
	route := strings.TrimRight(e.Path, "/")
	switch {
	case route == "/chat" && e.HTTPMethod == http.MethodPost:
		resp = h.chat(ctx, e)
	case route == "/menu" && e.HTTPMethod == http.MethodGet:
		resp = h.menu(ctx)
	case route == "/health" && e.HTTPMethod == http.MethodGet:
		resp = jsonResponse(http.StatusOK, map[string]string{"status": "ok"})
	case route == "/chat" || route == "/menu" || route == "/health":
		resp = jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED"})
	default:
		resp = jsonResponse(http.StatusNotFound, errorResponse{Error: "NOT_FOUND"})
	}
	resp.Headers[correlationHeader] = correlationID

	slog.Info("handler: request",
		"method", e.HTTPMethod,
		"path", e.Path,
		"status", resp.StatusCode,
		"correlationID", correlationID,
		"durationMs", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (h *Handler) chat(ctx context.Context, e events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	req, err := decodeChatRequest(e)
	if err != nil {
		slog.Warn("handler: invalid request body", "err", err)
		return errorFor(usecase.NewError(usecase.ErrorInvalidInput, "invalid_body", err))
	}
	reply, err := h.svc.Chat(ctx, usecase.ChatInput{Message: req.Message, SessionID: req.SessionID})
	if err != nil {
		return errorFor(err)
	}
	return jsonResponse(http.StatusOK, chatResponse{
		Response:  reply.Response,
		SessionID: reply.Session.ID,
		State:     reply.Session.State,
		Order:     reply.Session.Order,
	})
}

func (h *Handler) menu(ctx context.Context) events.APIGatewayProxyResponse {
	products, err := h.svc.Menu(ctx)
	if err != nil {
		return errorFor(err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return jsonResponse(http.StatusOK, menuResponse{Products: products})
}

func decodeChatRequest(e events.APIGatewayProxyRequest) (chatRequest, error) {
	body := []byte(e.Body)
	if e.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(e.Body)
		if err != nil {
			return chatRequest{}, err
		}
		body = decoded
	}
	var req chatRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return chatRequest{}, err
	}
	return req, nil
}

func errorFor(err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		slog.Error("handler: unexpected error", "err", err)
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)})
	}

	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorUpstream:
		status = http.StatusBadGateway
	}
	if status != http.StatusBadRequest {
		slog.Error("handler: request failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
	}
	return jsonResponse(status, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason})
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
