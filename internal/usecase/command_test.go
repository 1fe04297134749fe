package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"order-agent/internal/domain"
	"order-agent/internal/extract"
)

func TestParseAIReply(t *testing.T) {
	reply, err := parseAIReply(` {"intent":"add_items","response":"  Added. ","extractedData":{"items":[{"flavor":"Sugar","quantity":2}]},"confidence":0.8,"needsEscalation":false} `)
	require.NoError(t, err)
	require.Equal(t, "Added.", reply.Response)
	require.Equal(t, AddItems{Items: []extract.Item{{Flavor: "Sugar", Quantity: 2}}}, reply.toCommand())
}

func TestParseAIReply_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":      "hello",
		"unknown field": `{"intent":"answer_faq","response":"hi","mood":"happy"}`,
		"two values":    `{"intent":"answer_faq"}{"intent":"answer_faq"}`,
		"trailing junk": `{"intent":"answer_faq"} nope`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseAIReply(raw)
			require.Error(t, err)
		})
	}
}

func TestToCommand(t *testing.T) {
	cases := []struct {
		name  string
		reply aiReply
		want  Command
	}{
		{
			name:  "low confidence answers only",
			reply: aiReply{Intent: aiIntentCancel, Response: "ok", Confidence: 0.49},
			want:  AnswerFaq{Text: "ok"},
		},
		{
			name:  "add without items answers",
			reply: aiReply{Intent: aiIntentAddItems, Response: "which?", Confidence: 1},
			want:  AnswerFaq{Text: "which?"},
		},
		{
			name:  "remove",
			reply: aiReply{Intent: "Remove_Item", Confidence: 0.9, ExtractedData: extractedData{Flavor: "Sugar"}},
			want:  RemoveItem{Flavor: "Sugar"},
		},
		{
			name:  "remove without flavor",
			reply: aiReply{Intent: aiIntentRemoveItem, Confidence: 0.9},
			want:  AnswerFaq{},
		},
		{
			name:  "customer info",
			reply: aiReply{Intent: aiIntentSetCustomer, Confidence: 0.9, ExtractedData: extractedData{Email: "a@b.co"}},
			want:  SetCustomerInfo{Email: "a@b.co"},
		},
		{
			name:  "confirm",
			reply: aiReply{Intent: aiIntentConfirm, Confidence: 0.5},
			want:  ConfirmOrder{},
		},
		{
			name:  "cancel",
			reply: aiReply{Intent: aiIntentCancel, Confidence: 0.7},
			want:  CancelOrder{},
		},
		{
			name:  "unknown intent",
			reply: aiReply{Intent: "dance", Response: "no", Confidence: 1},
			want:  AnswerFaq{Text: "no"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.reply.toCommand())
		})
	}
}

func TestApply_SetCustomerInfoAdvancesToMissingStep(t *testing.T) {
	h := newHarness(t)
	tk, err := h.conv.loadToolkit(t.Context())
	require.NoError(t, err)

	s := sessionIn(domain.StateCollectingOrder)
	s.Order.AddLine("Sugar", 1, 15)
	tr := newTurn(h.conv, tk, s, "I'm Sam")

	resp := tr.apply(t.Context(), SetCustomerInfo{Name: "Sam"}, "Nice to meet you")
	require.Equal(t, askEmailPrompt, resp)
	require.Equal(t, domain.StateCollectingEmail, s.State)

	resp = tr.apply(t.Context(), SetCustomerInfo{Email: "SAM@example.com"}, "")
	require.Contains(t, resp, "Please review your order")
	require.Equal(t, domain.StateConfirmingOrder, s.State)
	require.Equal(t, "sam@example.com", s.Order.CustomerEmail)
}

func TestApply_CommandsWithoutOrderOnlyAnswer(t *testing.T) {
	h := newHarness(t)
	tk, err := h.conv.loadToolkit(t.Context())
	require.NoError(t, err)

	s := sessionIn(domain.StateIdle)
	tr := newTurn(h.conv, tk, s, "whatever")
	for _, cmd := range []Command{SetCustomerInfo{Name: "Sam"}, ConfirmOrder{}, CancelOrder{}, RemoveItem{Flavor: "Sugar"}} {
		require.Equal(t, "text", tr.apply(t.Context(), cmd, "text"))
		require.Equal(t, domain.StateIdle, s.State)
	}
	require.Equal(t, "", tr.apply(t.Context(), AddItems{Items: []extract.Item{{Flavor: "nope", Quantity: 1}}}, ""))
}
