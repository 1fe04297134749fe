package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var punctuationReplacer = strings.NewReplacer(
	"’", "'",
	"‘", "'",
	"“", `"`,
	"”", `"`,
	"–", "-",
	"—", "-",
)

// Normalize folds case, strips diacritics and collapses whitespace so that
// "Crème  Brûlée" and "creme brulee" compare equal.
func Normalize(s string) string {
	// Transformers carry state and are built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(punctuationReplacer.Replace(out))
	return strings.Join(strings.Fields(out), " ")
}
