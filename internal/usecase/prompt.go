package usecase

import (
	"fmt"
	"strings"

	"order-agent/internal/domain"
	"order-agent/internal/knowledge"
)

type promptContext struct {
	assistantPrompt string
	products        []domain.Product
	faq             []knowledge.Result
	state           domain.State
	order           domain.Order
}

// buildPromptMessages assembles the system prompt followed by the latest
// maxContext turns of history. The current user message is the last turn.
func buildPromptMessages(ctx promptContext, history []domain.ChatMessage, maxContext int) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildPolicyPrompt(ctx.assistantPrompt)},
		{Role: domain.RoleSystem, Content: buildShopContextPrompt(ctx)},
	}
	if maxContext > 0 && len(history) > maxContext {
		history = history[len(history)-maxContext:]
	}
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		messages = append(messages, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return messages
}

func buildPolicyPrompt(assistantPrompt string) string {
	return strings.Join([]string{
		strings.TrimSpace(assistantPrompt),
		"",
		"Task:",
		"Help the customer with the shop's menu, policies and their order.",
		"Use only the menu, FAQ entries and order details provided in this request.",
		"",
		"Behavior Rules:",
		behaviorRules(),
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Keep answers short and friendly.",
		"2) Never invent products, prices or policies.",
		"3) Quantities are whole units of the product's unit of sale.",
		"4) If the customer wants a person, is upset, or asks for something you cannot do, set needsEscalation to true.",
		"5) If required information is unavailable, say you don't have that information.",
	}, "\n")
}

func outputContract() string {
	return "Return JSON only with keys intent (string), response (string), extractedData (object), " +
		"confidence (number between 0 and 1) and needsEscalation (boolean). " +
		"intent is one of add_items, remove_item, set_customer_info, confirm_order, cancel_order, answer_faq. " +
		"extractedData may contain items (array of {flavor, quantity}), flavor, name and email. " +
		"Use answer_faq for questions and small talk. response is the final user-facing text."
}

func buildShopContextPrompt(ctx promptContext) string {
	var b strings.Builder
	b.WriteString("Menu:\n")
	if len(ctx.products) == 0 {
		b.WriteString("(no products available)\n")
	}
	for _, p := range ctx.products {
		fmt.Fprintf(&b, "- %s: %s per %s", p.Name, money(p.Price), unitOf(p))
		if d := normalizePromptInput(p.Description); d != "" {
			fmt.Fprintf(&b, ". %s", d)
		}
		if len(p.Ingredients) > 0 {
			fmt.Fprintf(&b, " Ingredients: %s.", strings.Join(p.Ingredients, ", "))
		}
		b.WriteString("\n")
	}

	if len(ctx.faq) > 0 {
		b.WriteString("\nRelevant FAQ:\n")
		for _, r := range ctx.faq {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", normalizePromptInput(r.Entry.Question), normalizePromptInput(r.Entry.Answer))
		}
	}

	fmt.Fprintf(&b, "\nConversation state: %s\n", ctx.state)
	if ctx.order.IsEmpty() {
		b.WriteString("Current order: empty")
	} else {
		fmt.Fprintf(&b, "Current order:\n%s", formatLines(ctx.order, nil))
	}
	return b.String()
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
