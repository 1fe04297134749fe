package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"order-agent/internal/domain"
)

type aiItems struct {
	Items []Item `json:"items"`
}

func buildPrompt(message string, flavors []string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: strings.Join([]string{
			"You extract cookie order items from a customer message.",
			"Valid flavors: " + strings.Join(flavors, "; "),
			"Quantities are whole dozens. \"a dozen\" is 1, \"half a dozen\" is not orderable and must be skipped.",
			"Only use flavors from the valid list, spelled exactly as listed.",
			`Return JSON only, shaped {"items":[{"flavor":"<name>","quantity":<integer>}]}.`,
			`If nothing can be extracted return {"items":[]}.`,
		}, "\n")},
		{Role: domain.RoleUser, Content: message},
	}
}

// parseItems decodes the AI reply. Models sometimes wrap JSON in prose or
// code fences, so the outermost object is retried on failure.
func parseItems(raw string) ([]Item, error) {
	raw = strings.TrimSpace(raw)
	var out aiItems
	err := json.Unmarshal([]byte(raw), &out)
	if err == nil {
		return out.Items, nil
	}
	first, last := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if first < 0 || last <= first {
		return nil, fmt.Errorf("extract: decode items: %w", err)
	}
	out = aiItems{}
	if err2 := json.Unmarshal([]byte(raw[first:last+1]), &out); err2 != nil {
		return nil, fmt.Errorf("extract: decode items: %w", err2)
	}
	return out.Items, nil
}
