// Package lexindex implements the full-text inverted index over per-frame
// search text: tokenization, an in-memory build from a container snapshot,
// segment (de)serialization, and boolean/BM25 query evaluation.
package lexindex

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Tokenize splits s into lowercase, width-folded, NFC-normalized word
// tokens. Runs of letters or digits form a token; everything else is a
// separator. Width folding collapses fullwidth/halfwidth variants (common
// in CJK-adjacent text) to a single canonical form before matching.
func Tokenize(s string) []string {
	s = norm.NFC.String(s)
	s = width.Fold.String(s)
	s = strings.ToLower(s)

	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
