package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"order-agent/internal/domain"
	"order-agent/internal/usecase"
)

type recordingHandler struct {
	last events.APIGatewayProxyRequest
	resp events.APIGatewayProxyResponse
}

func (h *recordingHandler) Handle(_ context.Context, e events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	h.last = e
	return h.resp, nil
}

func TestRouter_AdaptsRequests(t *testing.T) {
	h := &recordingHandler{resp: events.APIGatewayProxyResponse{
		StatusCode: http.StatusCreated,
		Headers:    map[string]string{"X-Correlation-Id": "c-1"},
		Body:       `{"ok":true}`,
	}}
	srv := httptest.NewServer(newRouter(h, "*"))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/chat", strings.NewReader(`{"message":"hi"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "c-1", resp.Header.Get("X-Correlation-Id"))
	require.Equal(t, http.MethodPost, h.last.HTTPMethod)
	require.Equal(t, "/chat", h.last.Path)
	require.Equal(t, `{"message":"hi"}`, h.last.Body)
	require.Equal(t, "application/json", h.last.Headers["Content-Type"])
}

func TestRouter_UnknownRoute(t *testing.T) {
	srv := httptest.NewServer(newRouter(&recordingHandler{}, "*"))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMemParams(t *testing.T) {
	p, err := newParams(devConfig{OpenAIKey: "sk-1", OpenAIModel: "m", Prompt: "p"})
	require.NoError(t, err)

	raw, err := p.GetParameter(context.Background(), "/devtool/open-ai-token")
	require.NoError(t, err)
	var tok struct{ Token string }
	require.NoError(t, json.Unmarshal([]byte(raw), &tok))
	require.Equal(t, "sk-1", tok.Token)

	_, err = p.GetParameter(context.Background(), "/devtool/missing")
	require.Error(t, err)

	vals, err := p.GetParameters(context.Background(), "/devtool/config/openai_model", "/devtool/missing")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"/devtool/config/openai_model": "m"}, vals)
}

func TestBuildConversation_ExampleMenu(t *testing.T) {
	conv, alerts, err := buildConversation(devConfig{MenuFile: "../../config/menu.example.yaml", AICallLimit: 5})
	require.NoError(t, err)
	defer alerts.Wait()

	products, err := conv.Menu(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)

	reply, err := conv.Chat(context.Background(), usecase.ChatInput{Message: "2 dozen choc chip"})
	require.NoError(t, err)
	require.Equal(t, domain.StateCollectingOrder, reply.Session.State)
	require.InDelta(t, 36.0, reply.Session.Order.Total, 1e-9)
}

type scriptedProcessor struct {
	sessions []*domain.Session
}

func (p *scriptedProcessor) ProcessMessage(_ context.Context, text string, s *domain.Session) (usecase.Reply, error) {
	p.sessions = append(p.sessions, s)
	if text == "bad" {
		return usecase.Reply{}, usecase.NewError(usecase.ErrorInvalidInput, "message_too_long", nil)
	}
	next := domain.NewSession("s-1")
	return usecase.Reply{Response: "echo " + text, Session: next}, nil
}

func TestChatLoop(t *testing.T) {
	p := &scriptedProcessor{}
	in := strings.NewReader("hello\n\nbad\n/state\n/reset\nagain\n/quit\nignored\n")
	var out bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), p, in, &out))

	text := out.String()
	require.Contains(t, text, "echo hello")
	require.Contains(t, text, "[INVALID_INPUT] message_too_long")
	require.Contains(t, text, "session s-1 state IDLE")
	require.NotContains(t, text, "ignored")

	require.Len(t, p.sessions, 3)
	require.Nil(t, p.sessions[0])
	require.NotNil(t, p.sessions[1])
	require.Nil(t, p.sessions[2])
}
