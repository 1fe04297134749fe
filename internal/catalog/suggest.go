package catalog

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

const minSuggestToken = 4

// Suggest returns up to limit product names that fuzzily resemble words of
// text, best match first.
func (ix *Index) Suggest(text string, limit int) []string {
	if limit <= 0 || len(ix.names) == 0 {
		return nil
	}
	best := make(map[int]int)
	for _, tok := range strings.Fields(Normalize(text)) {
		tok = strings.Trim(tok, ".,!?;:'\"()")
		if len(tok) < minSuggestToken {
			continue
		}
		for _, m := range fuzzy.Find(tok, ix.names) {
			if score, seen := best[m.Index]; !seen || m.Score > score {
				best[m.Index] = m.Score
			}
		}
	}

	idx := make([]int, 0, len(best))
	for i := range best {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool {
		if best[idx[a]] != best[idx[b]] {
			return best[idx[a]] > best[idx[b]]
		}
		return idx[a] < idx[b]
	})
	if len(idx) > limit {
		idx = idx[:limit]
	}
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = ix.products[j].Name
	}
	return out
}
