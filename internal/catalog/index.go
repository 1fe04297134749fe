// Package catalog provides a normalized, read-only view over the product menu
// and its natural-language aliases.
package catalog

import (
	"log/slog"
	"sort"
	"strings"

	"order-agent/internal/domain"
)

// Term is a searchable phrase (product name or alias) bound to its product.
type Term struct {
	Text    string
	Product domain.Product
	Alias   bool
}

// Index resolves free text to available products. It is immutable after
// construction and safe for concurrent use.
type Index struct {
	products []domain.Product
	names    []string
	byName   map[string]int
	byAlias  map[string]int
	terms    []Term
}

// NewIndex builds an index over the available products. aliases maps a
// free-text phrase to a canonical product name; entries naming an unknown or
// unavailable product are dropped.
func NewIndex(products []domain.Product, aliases map[string]string) *Index {
	ix := &Index{
		byName:  make(map[string]int),
		byAlias: make(map[string]int),
	}
	for _, p := range products {
		if !p.Available || strings.TrimSpace(p.Name) == "" {
			continue
		}
		key := Normalize(p.Name)
		if _, dup := ix.byName[key]; dup {
			slog.Warn("catalog: duplicate product name ignored", "name", p.Name)
			continue
		}
		ix.byName[key] = len(ix.products)
		ix.products = append(ix.products, p)
		ix.names = append(ix.names, key)
		ix.terms = append(ix.terms, Term{Text: key, Product: p})
	}

	for alias, target := range aliases {
		i, ok := ix.byName[Normalize(target)]
		if !ok {
			slog.Debug("catalog: alias target not in catalog", "alias", alias, "target", target)
			continue
		}
		key := Normalize(alias)
		if key == "" {
			continue
		}
		ix.byAlias[key] = i
		if _, isName := ix.byName[key]; !isName {
			ix.terms = append(ix.terms, Term{Text: key, Product: ix.products[i], Alias: true})
		}
	}

	// Longest phrase first so "double chocolate chip" claims its text before
	// "chocolate chip" does; ties broken alphabetically for determinism.
	sort.SliceStable(ix.terms, func(a, b int) bool {
		if len(ix.terms[a].Text) != len(ix.terms[b].Text) {
			return len(ix.terms[a].Text) > len(ix.terms[b].Text)
		}
		return ix.terms[a].Text < ix.terms[b].Text
	})
	return ix
}

// ListAvailable returns the available products in source order.
func (ix *Index) ListAvailable() []domain.Product {
	return append([]domain.Product(nil), ix.products...)
}

// Len returns the number of available products.
func (ix *Index) Len() int {
	return len(ix.products)
}

// Names returns the display names of the available products in source order.
func (ix *Index) Names() []string {
	out := make([]string, len(ix.products))
	for i, p := range ix.products {
		out[i] = p.Name
	}
	return out
}

// Terms returns every searchable phrase, longest first.
func (ix *Index) Terms() []Term {
	return append([]Term(nil), ix.terms...)
}

// FindByName resolves text by exact alias, then exact name, then substring
// containment of text inside a product name. Matching is case-insensitive.
func (ix *Index) FindByName(text string) (domain.Product, bool) {
	q := Normalize(text)
	if q == "" {
		return domain.Product{}, false
	}
	if i, ok := ix.byAlias[q]; ok {
		return ix.products[i], true
	}
	if i, ok := ix.byName[q]; ok {
		return ix.products[i], true
	}
	for i, name := range ix.names {
		if strings.Contains(name, q) {
			return ix.products[i], true
		}
	}
	return domain.Product{}, false
}
