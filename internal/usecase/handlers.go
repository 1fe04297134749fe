package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"order-agent/internal/catalog"
	"order-agent/internal/domain"
	"order-agent/internal/extract"
	"order-agent/internal/intent"
	"order-agent/internal/knowledge"
	"order-agent/internal/notify"
)

const (
	minNameLength   = 2
	maxSuggestions  = 3
	askNamePrompt   = "What name should I put the order under?"
	askEmailPrompt  = "What email address should we use for order updates?"
	askChangePrompt = "What would you like to change? You can add items, or say \"remove\" and a flavor."
)

// Keyword checks run on normalized text and match whole words only.
var (
	checkoutRe = regexp.MustCompile(`\b(?:done|check ?out|that'?s all|proceed|finish(?:ed)?)\b`)
	cancelRe   = regexp.MustCompile(`\bcancel`)
	confirmRe  = regexp.MustCompile(`\b(?:confirm|yes|yea|yeah|yep|sure|ok|okay|place (?:my |the )?order|submit)\b`)
	modifyRe   = regexp.MustCompile(`\b(?:modify|change)\b`)
	removeRe   = regexp.MustCompile(`\b(?:remove|take off|delete|no more)\b`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// turn is the state of processing one message.
type turn struct {
	c      *Conversation
	tk     *toolkit
	s      *domain.Session
	text   string
	norm   string
	intent intent.Intent
}

func newTurn(c *Conversation, tk *toolkit, s *domain.Session, text string) *turn {
	return &turn{
		c:      c,
		tk:     tk,
		s:      s,
		text:   text,
		norm:   catalog.Normalize(text),
		intent: intent.Classify(text),
	}
}

func (t *turn) idle(ctx context.Context) (string, error) {
	switch t.intent {
	case intent.Greeting:
		return welcomeMessage(t.tk.index.Len()), nil
	case intent.Cancel:
		t.s.Order.Clear()
		return nothingToCancel, nil
	case intent.Order, intent.OrderItem:
		items, limited := t.extract(ctx)
		if limited {
			return rateLimitedMessage, nil
		}
		t.s.State = domain.StateCollectingOrder
		if resp, ok := t.addItems(items); ok {
			return resp, nil
		}
		return formatCatalog(t.tk.index.ListAvailable()), nil
	}
	return t.answer(ctx)
}

func (t *turn) collectingOrder(ctx context.Context) (string, error) {
	switch {
	case t.intent == intent.Confirm || checkoutRe.MatchString(t.norm):
		return t.checkout(), nil
	case t.intent == intent.Cancel || cancelRe.MatchString(t.norm):
		return t.cancel(), nil
	case removeRe.MatchString(t.norm):
		return t.removeMentioned(), nil
	}

	items := t.tk.extractor.Local(t.text)
	if len(items) == 0 {
		if t.intent == intent.FAQ {
			if hit, ok := t.tk.search.Best(t.text, knowledge.DirectAnswerScore); ok {
				return hit.Entry.Answer + "\n\n" + continueOrderHint, nil
			}
		}
		var limited bool
		items, limited = t.fallback(ctx)
		if limited {
			return rateLimitedMessage, nil
		}
	}
	if resp, ok := t.addItems(items); ok {
		return resp, nil
	}
	return didYouMean(t.tk.index.Suggest(t.text, maxSuggestions)), nil
}

func (t *turn) collectingName(_ context.Context) (string, error) {
	if t.intent == intent.Cancel {
		return t.cancel(), nil
	}
	name := strings.Join(strings.Fields(t.text), " ")
	if utf8.RuneCountInString(name) < minNameLength {
		return askNameAgain, nil
	}
	t.s.Order.CustomerName = name
	t.s.State = domain.StateCollectingEmail
	return fmt.Sprintf("Thanks, %s! %s", name, askEmailPrompt), nil
}

func (t *turn) collectingEmail(_ context.Context) (string, error) {
	if t.intent == intent.Cancel {
		return t.cancel(), nil
	}
	email := strings.ToLower(strings.TrimSpace(t.text))
	if !emailRe.MatchString(email) {
		return askEmailAgain, nil
	}
	t.s.Order.CustomerEmail = email
	t.s.State = domain.StateConfirmingOrder
	return confirmationPrompt(t.s.Order, t.tk.index), nil
}

func (t *turn) confirmingOrder(ctx context.Context) (string, error) {
	switch {
	case t.intent == intent.Confirm || confirmRe.MatchString(t.norm):
		return t.finalize(ctx), nil
	case modifyRe.MatchString(t.norm):
		t.s.State = domain.StateCollectingOrder
		return orderSummary(t.s.Order, t.tk.index) + "\n" + askChangePrompt, nil
	case t.intent == intent.Cancel || cancelRe.MatchString(t.norm):
		return t.cancel(), nil
	}
	return confirmReprompt, nil
}

func (t *turn) checkout() string {
	if t.s.Order.IsEmpty() {
		return emptyCheckoutPrompt
	}
	t.s.State = domain.StateCollectingName
	return orderSummary(t.s.Order, t.tk.index) + "\n" + askNamePrompt
}

func (t *turn) cancel() string {
	t.s.Order.Clear()
	t.s.State = domain.StateIdle
	return cancelledMessage
}

// finalize places the order. Precondition failures move back to the step
// that collects the missing piece; a persistence failure keeps everything
// for a retry.
func (t *turn) finalize(ctx context.Context) string {
	id, err := t.c.finalizer.Finalize(ctx, t.s.ID, t.s.Order)
	switch {
	case err == nil:
		total := t.s.Order.Total
		t.s.Order.Clear()
		t.s.State = domain.StateIdle
		return orderPlacedMessage(id, total)
	case errors.Is(err, ErrEmptyOrder):
		t.s.State = domain.StateCollectingOrder
		return emptyCheckoutPrompt
	case errors.Is(err, ErrMissingName):
		t.s.State = domain.StateCollectingName
		return askNamePrompt
	case errors.Is(err, ErrMissingEmail):
		t.s.State = domain.StateCollectingEmail
		return askEmailPrompt
	}
	slog.Error("usecase: finalize order failed", "err", err, "sessionID", t.s.ID)
	return persistFailed
}

func (t *turn) removeMentioned() string {
	var removed []string
	for _, name := range t.tk.extractor.Mentions(t.text) {
		if t.s.Order.RemoveLine(name) {
			removed = append(removed, name)
		}
	}
	return t.removedMessage(removed)
}

func (t *turn) removedMessage(removed []string) string {
	if len(removed) == 0 {
		if t.s.Order.IsEmpty() {
			return notInOrderMessage + " Your order is empty. What would you like?"
		}
		return notInOrderMessage + "\n" + orderSummary(t.s.Order, t.tk.index)
	}
	msg := "Removed " + strings.Join(removed, ", ") + "."
	if t.s.Order.IsEmpty() {
		return msg + " Your order is now empty. What would you like?"
	}
	return msg + "\n" + orderSummary(t.s.Order, t.tk.index) + "\n" + continueOrderHint
}

// addItems merges items into the order at the current catalog price and
// reports whether anything was added.
func (t *turn) addItems(items []extract.Item) (string, bool) {
	var added []domain.OrderLine
	for _, it := range items {
		p, ok := t.tk.index.FindByName(it.Flavor)
		if !ok || it.Quantity <= 0 {
			continue
		}
		t.s.Order.AddLine(p.Name, it.Quantity, p.Price)
		added = append(added, domain.OrderLine{Flavor: p.Name, Quantity: it.Quantity, UnitPrice: p.Price})
	}
	if len(added) == 0 {
		return "", false
	}
	return addedMessage(added, t.s.Order, t.tk.index), true
}

// extract runs local extraction and then the rate-limited AI fallback.
func (t *turn) extract(ctx context.Context) (items []extract.Item, limited bool) {
	if items := t.tk.extractor.Local(t.text); len(items) > 0 {
		return items, false
	}
	return t.fallback(ctx)
}

func (t *turn) fallback(ctx context.Context) (items []extract.Item, limited bool) {
	if t.c.llm == nil || t.tk.index.Len() == 0 {
		return nil, false
	}
	if !t.allowAI() {
		return nil, true
	}
	t.c.limiter.Increment(t.s.ID)
	return t.tk.extractor.Fallback(ctx, t.text), false
}

func (t *turn) allowAI() bool {
	d := t.c.limiter.Check(t.s.ID)
	if !d.Allowed {
		slog.Warn("usecase: AI budget exhausted", "sessionID", t.s.ID)
	}
	return d.Allowed
}

// answer handles free-form input: a strong knowledge hit is returned as is,
// otherwise the AI collaborator answers with the weaker hits as context.
func (t *turn) answer(ctx context.Context) (string, error) {
	results := t.tk.search.Search(t.text)
	var fallback string
	var faq []knowledge.Result
	for _, r := range results {
		if r.Score >= knowledge.ContextScore {
			faq = append(faq, r)
		}
	}
	if len(faq) > 0 {
		if faq[0].Score >= knowledge.DirectAnswerScore {
			return faq[0].Entry.Answer, nil
		}
		fallback = faq[0].Entry.Answer
	}
	degrade := func(err error) (string, error) {
		if fallback != "" {
			slog.Warn("usecase: AI answer failed, using knowledge base", "err", err, "sessionID", t.s.ID)
			return fallback, nil
		}
		return "", err
	}

	if t.c.llm == nil {
		if fallback != "" {
			return fallback, nil
		}
		return noAnswerMessage, nil
	}
	if !t.allowAI() {
		return rateLimitedMessage, nil
	}

	cfg, err := t.c.settings.get(ctx)
	if err != nil {
		return degrade(err)
	}
	flagged, err := t.c.llm.Moderate(ctx, t.text)
	if err != nil {
		return degrade(err)
	}
	if flagged {
		slog.Warn("usecase: message flagged by moderation", "sessionID", t.s.ID)
		return moderationRefusal, nil
	}

	t.c.limiter.Increment(t.s.ID)
	raw, err := t.c.llm.ChatJSON(ctx, cfg.model, buildPromptMessages(promptContext{
		assistantPrompt: cfg.assistantPrompt,
		products:        t.tk.index.ListAvailable(),
		faq:             faq,
		state:           t.s.State,
		order:           t.s.Order,
	}, t.s.History, t.c.maxContextItems))
	if err != nil {
		return degrade(err)
	}
	reply, err := parseAIReply(raw)
	if err != nil {
		return degrade(err)
	}
	if reply.NeedsEscalation {
		t.escalate()
	}
	if resp := t.apply(ctx, reply.toCommand(), reply.Response); resp != "" {
		return resp, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return noAnswerMessage, nil
}

// apply interprets an AI-suggested command with the same rules as typed
// input. It returns "" when the command had nothing to act on and the reply
// text is empty.
func (t *turn) apply(ctx context.Context, cmd Command, text string) string {
	switch cmd := cmd.(type) {
	case AddItems:
		if resp, ok := t.addItems(cmd.Items); ok {
			t.s.State = domain.StateCollectingOrder
			return resp
		}
	case RemoveItem:
		if p, ok := t.tk.index.FindByName(cmd.Flavor); ok && t.s.Order.RemoveLine(p.Name) {
			t.s.State = domain.StateCollectingOrder
			return t.removedMessage([]string{p.Name})
		}
	case SetCustomerInfo:
		if !t.s.Order.IsEmpty() {
			return t.setCustomerInfo(cmd)
		}
	case ConfirmOrder:
		if t.s.State == domain.StateConfirmingOrder {
			return t.finalize(ctx)
		}
		if !t.s.Order.IsEmpty() {
			return t.checkout()
		}
	case CancelOrder:
		if !t.s.Order.IsEmpty() {
			return t.cancel()
		}
	}
	return text
}

func (t *turn) setCustomerInfo(cmd SetCustomerInfo) string {
	if name := strings.Join(strings.Fields(cmd.Name), " "); utf8.RuneCountInString(name) >= minNameLength {
		t.s.Order.CustomerName = name
	}
	if email := strings.ToLower(strings.TrimSpace(cmd.Email)); emailRe.MatchString(email) {
		t.s.Order.CustomerEmail = email
	}
	switch {
	case t.s.Order.CustomerName == "":
		t.s.State = domain.StateCollectingName
		return askNamePrompt
	case t.s.Order.CustomerEmail == "":
		t.s.State = domain.StateCollectingEmail
		return askEmailPrompt
	}
	t.s.State = domain.StateConfirmingOrder
	return confirmationPrompt(t.s.Order, t.tk.index)
}

func (t *turn) escalate() {
	if t.c.notifier == nil {
		return
	}
	t.c.notifier.Notify(notify.Alert{
		Kind:      notify.KindEscalation,
		SessionID: t.s.ID,
		Subject:   "Customer asked for help",
		Body:      fmt.Sprintf("Session %s (%s): %q", t.s.ID, t.s.State, t.text),
	})
}
