// Package intent classifies a raw customer message into a coarse intent with
// cheap rule-based checks. The result is advisory; conversation handlers may
// apply stricter checks of their own.
package intent

import (
	"regexp"

	"order-agent/internal/catalog"
)

// Intent is a coarse classification tag.
type Intent string

const (
	Greeting  Intent = "GREETING"
	Order     Intent = "ORDER"
	OrderItem Intent = "ORDER_ITEM"
	Confirm   Intent = "CONFIRM"
	Cancel    Intent = "CANCEL"
	FAQ       Intent = "FAQ"
	Unknown   Intent = "UNKNOWN"
)

const trailing = `[\s!.,]*$`

var (
	greetingRe = regexp.MustCompile(`^(?:hi|hello|hey|hiya|howdy|greetings|yo|good (?:morning|afternoon|evening|day))(?: there| all| everyone)?` + trailing)

	// A number followed by the unit of sale, allowing up to three filler
	// words in between ("2 more dozen", "3 of your dozen").
	orderItemRe = regexp.MustCompile(`\b\d+\s*(?:[a-z']+\s+){0,3}?(?:dozens?|doz|dz)\b`)

	orderRe = regexp.MustCompile(`\b(?:order|buy|want|get|purchase|need|grab)\b.{0,40}?\b(?:cookies?|dozens?|order|box(?:es)?)\b`)

	confirmRe = regexp.MustCompile(`^(?:yes|yeah|yea|yep|yup|y|confirm|confirmed|ok|okay|sure|correct|sounds good|looks good|go ahead)` + trailing)

	cancelRe = regexp.MustCompile(`^(?:no|nope|nah|n|cancel|stop|quit|never ?mind|forget it)` + trailing)

	questionRe = regexp.MustCompile(`\?|\b(?:what|when|where|who|why|how|which|can|could|do you|does|is there|are there|are you)\b`)
)

// Classify returns the first matching intent in precedence order: greeting,
// order item, order, confirm, cancel, FAQ, unknown.
func Classify(message string) Intent {
	m := catalog.Normalize(message)
	switch {
	case m == "":
		return Unknown
	case greetingRe.MatchString(m):
		return Greeting
	case orderItemRe.MatchString(m):
		return OrderItem
	case orderRe.MatchString(m):
		return Order
	case confirmRe.MatchString(m):
		return Confirm
	case cancelRe.MatchString(m):
		return Cancel
	case questionRe.MatchString(m):
		return FAQ
	}
	return Unknown
}

// IsOrdering reports whether i starts or continues an order.
func (i Intent) IsOrdering() bool {
	return i == Order || i == OrderItem
}
