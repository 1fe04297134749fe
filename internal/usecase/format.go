package usecase

import (
	"fmt"
	"strings"

	"order-agent/internal/catalog"
	"order-agent/internal/domain"
)

const (
	apologyMessage      = "Sorry, something went wrong on our side. Please try that again in a moment."
	rateLimitedMessage  = "You've reached the limit of assistant requests for now. Please finish your current order using the menu, or try again later."
	moderationRefusal   = "Sorry, I can't help with that. I'm happy to answer questions about our menu or take an order."
	noAnswerMessage     = "I don't have that information. You can ask about our menu, or say \"order\" to start an order."
	restateMessage      = "I didn't catch a flavor and quantity. Could you tell me what you'd like, for example \"2 dozen chocolate chip\"?"
	emptyCheckoutPrompt = "You haven't added anything yet. What would you like to order?"
	cancelledMessage    = "Your order has been cancelled. Let me know if you'd like to start a new one."
	nothingToCancel     = "There's no order in progress. Say \"order\" whenever you'd like to start one."
	askNameAgain        = "Please tell me the name for the order (at least 2 characters)."
	askEmailAgain       = "That doesn't look like a valid email address. Please enter an email like name@example.com."
	confirmReprompt     = "Reply \"confirm\" to place the order, \"modify\" to change it, or \"cancel\" to cancel it."
	continueOrderHint   = "Anything else for your order? Say \"done\" when you're ready to check out."
	notInOrderMessage   = "I couldn't find that item in your order."
	persistFailed       = "Sorry, we couldn't place your order right now. Your details are saved, so reply \"confirm\" to try again."
)

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func unitOf(p domain.Product) string {
	if u := strings.TrimSpace(p.Unit); u != "" {
		return u
	}
	return "item"
}

func welcomeMessage(n int) string {
	if n == 0 {
		return "Hi! Welcome. Our menu is empty right now, but I'm happy to answer questions."
	}
	noun := "items"
	if n == 1 {
		noun = "item"
	}
	return fmt.Sprintf("Hi! Welcome. We have %d %s on the menu today. Would you like to see the menu or place an order?", n, noun)
}

func formatCatalog(products []domain.Product) string {
	if len(products) == 0 {
		return "Our menu is empty right now. Please check back soon, or ask me a question."
	}
	var b strings.Builder
	b.WriteString("Here's our menu:\n")
	for _, p := range products {
		fmt.Fprintf(&b, "- %s: %s per %s", p.Name, money(p.Price), unitOf(p))
		if d := strings.TrimSpace(p.Description); d != "" {
			fmt.Fprintf(&b, " (%s)", d)
		}
		b.WriteString("\n")
	}
	b.WriteString("What would you like? For example \"2 dozen ")
	b.WriteString(strings.ToLower(products[0].Name))
	b.WriteString("\".")
	return b.String()
}

// formatLines renders one line per order line. index supplies unit labels
// and may be nil.
func formatLines(o domain.Order, index *catalog.Index) string {
	var b strings.Builder
	for _, l := range o.Lines {
		unit := "x"
		if index != nil {
			if p, ok := index.FindByName(l.Flavor); ok {
				unit = unitOf(p)
			}
		}
		fmt.Fprintf(&b, "- %d %s %s: %s\n", l.Quantity, unit, l.Flavor, money(l.Subtotal()))
	}
	fmt.Fprintf(&b, "Total: %s", money(o.Total))
	return b.String()
}

func orderSummary(o domain.Order, index *catalog.Index) string {
	return "Your order:\n" + formatLines(o, index)
}

func addedMessage(items []domain.OrderLine, o domain.Order, index *catalog.Index) string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = fmt.Sprintf("%d %s", it.Quantity, it.Flavor)
	}
	return fmt.Sprintf("Added %s.\n%s\n%s", strings.Join(names, ", "), orderSummary(o, index), continueOrderHint)
}

func didYouMean(suggestions []string) string {
	if len(suggestions) == 0 {
		return restateMessage
	}
	return fmt.Sprintf("%s Did you mean: %s?", restateMessage, strings.Join(suggestions, ", "))
}

func confirmationPrompt(o domain.Order, index *catalog.Index) string {
	return fmt.Sprintf("Please review your order:\n%s\nName: %s\nEmail: %s\n%s",
		formatLines(o, index), o.CustomerName, o.CustomerEmail, confirmReprompt)
}

func orderPlacedMessage(orderID string, total float64) string {
	return fmt.Sprintf("Your order %s is confirmed! Total: %s. We'll email you when it's ready. Thank you!", orderID, money(total))
}
