// Package knowledge implements keyword-scored lookup over the FAQ knowledge
// base.
package knowledge

import (
	"sort"
	"strings"

	"order-agent/internal/catalog"
	"order-agent/internal/domain"
)

const (
	maxResults = 3

	keywordWeight  = 3
	questionWeight = 2
	answerWeight   = 1

	// DirectAnswerScore is the minimum score at which an entry may be
	// returned to the user verbatim.
	DirectAnswerScore = 3
	// ContextScore is the minimum score at which an entry is still usable,
	// for example as AI context.
	ContextScore = 2
)

// Result is a scored knowledge entry.
type Result struct {
	Entry domain.KnowledgeEntry
	Score int
}

type preparedEntry struct {
	entry    domain.KnowledgeEntry
	keywords []string
	question string
	answer   string
}

// Searcher scores entries against free-text queries. It is immutable and safe
// for concurrent use.
type Searcher struct {
	entries []preparedEntry
}

// NewSearcher prepares entries for search. Source order is kept for ties.
func NewSearcher(entries []domain.KnowledgeEntry) *Searcher {
	s := &Searcher{entries: make([]preparedEntry, 0, len(entries))}
	for _, e := range entries {
		p := preparedEntry{
			entry:    e,
			question: catalog.Normalize(e.Question),
			answer:   catalog.Normalize(e.Answer),
		}
		for _, k := range e.Keywords {
			if k = catalog.Normalize(k); k != "" {
				p.keywords = append(p.keywords, k)
			}
		}
		s.entries = append(s.entries, p)
	}
	return s
}

// Search returns at most three entries with a positive score, highest first.
func (s *Searcher) Search(query string) []Result {
	tokens := strings.Fields(catalog.Normalize(query))
	if len(tokens) == 0 {
		return nil
	}

	results := make([]Result, 0, len(s.entries))
	for _, e := range s.entries {
		score := 0
		for _, tok := range tokens {
			// "hours?" should still hit the keyword "hours".
			if tok = strings.Trim(tok, `.,!?;:"()`); tok != "" {
				score += e.score(tok)
			}
		}
		if score > 0 {
			results = append(results, Result{Entry: e.entry, Score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// Best returns the top result if its score reaches minScore.
func (s *Searcher) Best(query string, minScore int) (Result, bool) {
	results := s.Search(query)
	if len(results) == 0 || results[0].Score < minScore {
		return Result{}, false
	}
	return results[0], true
}

func (e preparedEntry) score(tok string) int {
	score := 0
	for _, k := range e.keywords {
		if strings.Contains(k, tok) {
			score += keywordWeight
			break
		}
	}
	if strings.Contains(e.question, tok) {
		score += questionWeight
	}
	if strings.Contains(e.answer, tok) {
		score += answerWeight
	}
	return score
}
