// Package extract turns a free-text customer message into order items.
//
// A local rule-based pass runs first and needs no network; only when it finds
// nothing is the AI collaborator asked to extract items as JSON.
package extract

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"order-agent/internal/catalog"
	"order-agent/internal/domain"
)

// Item is one extracted (flavor, quantity) pair. Flavor is the canonical
// product name and Quantity is in the catalog's unit.
type Item struct {
	Flavor   string `json:"flavor"`
	Quantity int    `json:"quantity"`
}

// AI performs a single JSON-mode completion.
type AI interface {
	CompleteJSON(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

var defaultUnits = []string{"dozens", "dozen", "doz", "dz"}

const shortAliasLen = 3

type termPattern struct {
	term    catalog.Term
	matcher *regexp.Regexp
}

// Extractor is bound to one catalog snapshot and is safe for concurrent use.
type Extractor struct {
	index    *catalog.Index
	ai       AI
	terms    []termPattern
	beforeRe *regexp.Regexp
	afterRe  *regexp.Regexp
}

// New compiles the patterns for every product name and alias of index. ai may
// be nil, in which case only the local pass runs.
func New(index *catalog.Index, ai AI) *Extractor {
	units := unitAlternation(index)
	e := &Extractor{
		index: index,
		ai:    ai,
		// quantity, optional unit, at most one filler word, then the flavor.
		beforeRe: regexp.MustCompile(`\b(\d+)\s*(?:(?:` + units + `)\b\.?\s*)?(?:[\p{L}'-]+\s+)?$`),
		// flavor, optional plural noun, then quantity with an optional unit.
		afterRe: regexp.MustCompile(`^(?:\s+(?:cookies?|ones|bars?|treats?))?\s*(?:[:x×=-]\s*)?(\d+)\b`),
	}
	for _, t := range index.Terms() {
		expr := regexp.QuoteMeta(t.Text)
		if len(t.Text) <= shortAliasLen {
			expr = `\b` + expr + `\b`
		}
		e.terms = append(e.terms, termPattern{term: t, matcher: regexp.MustCompile(expr)})
	}
	return e
}

// Extract runs the local pass and falls back to the AI collaborator when it
// yields nothing. It never fails; an empty slice means nothing was found.
func (e *Extractor) Extract(ctx context.Context, message string) []Item {
	if items := e.Local(message); len(items) > 0 {
		return items
	}
	return e.Fallback(ctx, message)
}

type span struct{ start, end int }

type found struct {
	flavor   string
	quantity int
	first    int
}

// Local extracts items without any external call. Each mention of a flavor
// takes its quantity from a number before it, else a number after it, else 1
// when the message holds no digits at all. Mentions of the same flavor add up.
func (e *Extractor) Local(message string) []Item {
	msg := catalog.Normalize(message)
	if msg == "" {
		return nil
	}
	hasDigit := strings.ContainsAny(msg, "0123456789")

	var claimed []span
	byFlavor := make(map[string]*found)
	for _, tp := range e.terms {
		for _, loc := range tp.matcher.FindAllStringIndex(msg, -1) {
			s := span{loc[0], loc[1]}
			if overlaps(claimed, s) {
				continue
			}
			claimed = append(claimed, s)

			qty, ok := e.quantityFor(msg, s, hasDigit)
			if !ok {
				continue
			}
			name := tp.term.Product.Name
			if f, seen := byFlavor[name]; seen {
				f.quantity += qty
				f.first = min(f.first, s.start)
			} else {
				byFlavor[name] = &found{flavor: name, quantity: qty, first: s.start}
			}
		}
	}
	return sortedItems(byFlavor)
}

// Mentions returns the canonical names of the products mentioned in message,
// in order of first mention, regardless of any quantity.
func (e *Extractor) Mentions(message string) []string {
	msg := catalog.Normalize(message)
	if msg == "" {
		return nil
	}
	var claimed []span
	byFlavor := make(map[string]*found)
	for _, tp := range e.terms {
		for _, loc := range tp.matcher.FindAllStringIndex(msg, -1) {
			s := span{loc[0], loc[1]}
			if overlaps(claimed, s) {
				continue
			}
			claimed = append(claimed, s)
			name := tp.term.Product.Name
			if f, seen := byFlavor[name]; seen {
				f.first = min(f.first, s.start)
			} else {
				byFlavor[name] = &found{flavor: name, first: s.start}
			}
		}
	}
	items := sortedItems(byFlavor)
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Flavor
	}
	return names
}

func (e *Extractor) quantityFor(msg string, s span, hasDigit bool) (int, bool) {
	if m := e.beforeRe.FindStringSubmatch(msg[:s.start]); m != nil {
		return parseQuantity(m[1])
	}
	if m := e.afterRe.FindStringSubmatch(msg[s.end:]); m != nil {
		return parseQuantity(m[1])
	}
	if !hasDigit {
		return 1, true
	}
	return 0, false
}

// Fallback asks the AI collaborator for items. Unknown flavors and
// non-positive quantities are dropped.
func (e *Extractor) Fallback(ctx context.Context, message string) []Item {
	if e.ai == nil || e.index.Len() == 0 {
		return nil
	}
	raw, err := e.ai.CompleteJSON(ctx, buildPrompt(message, e.index.Names()))
	if err != nil {
		slog.Warn("extract: AI fallback failed", "err", err)
		return nil
	}
	items, err := parseItems(raw)
	if err != nil {
		slog.Warn("extract: AI fallback returned malformed JSON", "err", err)
		return nil
	}

	byFlavor := make(map[string]*found)
	for i, it := range items {
		p, ok := e.index.FindByName(it.Flavor)
		if !ok || it.Quantity <= 0 {
			slog.Debug("extract: dropping AI item", "flavor", it.Flavor, "quantity", it.Quantity)
			continue
		}
		if f, seen := byFlavor[p.Name]; seen {
			f.quantity += it.Quantity
		} else {
			byFlavor[p.Name] = &found{flavor: p.Name, quantity: it.Quantity, first: i}
		}
	}
	return sortedItems(byFlavor)
}

func parseQuantity(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func overlaps(claimed []span, s span) bool {
	for _, c := range claimed {
		if s.start < c.end && c.start < s.end {
			return true
		}
	}
	return false
}

func sortedItems(byFlavor map[string]*found) []Item {
	if len(byFlavor) == 0 {
		return nil
	}
	all := make([]*found, 0, len(byFlavor))
	for _, f := range byFlavor {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].first < all[j].first })
	out := make([]Item, len(all))
	for i, f := range all {
		out[i] = Item{Flavor: f.flavor, Quantity: f.quantity}
	}
	return out
}

func unitAlternation(index *catalog.Index) string {
	seen := make(map[string]bool)
	var units []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			units = append(units, u)
		}
	}
	for _, u := range defaultUnits {
		add(u)
	}
	for _, p := range index.ListAvailable() {
		u := catalog.Normalize(p.Unit)
		add(u)
		if u != "" && !strings.HasSuffix(u, "s") {
			add(u + "s")
		}
	}
	sort.SliceStable(units, func(i, j int) bool { return len(units[i]) > len(units[j]) })
	quoted := make([]string, len(units))
	for i, u := range units {
		quoted[i] = regexp.QuoteMeta(u)
	}
	return strings.Join(quoted, "|")
}
