// Package normalize canonicalizes free-text entity names (careers,
// institutions, skills) and groups near-duplicate variants. It is a pure
// function of its input batch: no state survives between runs, so identical
// inputs always produce identical groupings.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NFD, strip combining marks, recompose. Turns "INGENIERÍA" into "INGENIERIA".
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Connective words dropped when folding program names, so that
// "INGENIERIA DE SISTEMAS" and "INGENIERIA SISTEMAS" collapse.
var connectives = map[string]bool{
	"DE": true, "EN": true, "Y": true, "E": true,
	"LA": true, "DEL": true, "LAS": true, "LOS": true, "PARA": true,
}

func stripAccents(s string) string {
	out, _, err := transform.String(deaccent, s)
	if err != nil {
		return s
	}
	return out
}

// Fold reduces a raw name to its comparison form: upper case, accents
// stripped, punctuation removed, whitespace collapsed and, when
// dropConnectives is set, Spanish connective words removed. An empty result
// means the input carried no usable content.
func Fold(s string, dropConnectives bool) string {
	s = stripAccents(strings.ToUpper(strings.TrimSpace(s)))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	words := strings.Fields(b.String())
	if dropConnectives {
		kept := words[:0]
		for _, w := range words {
			if !connectives[w] {
				kept = append(kept, w)
			}
		}
		words = kept
	}

	return strings.Join(words, " ")
}
