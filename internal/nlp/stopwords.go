// Package nlp holds the shallow, regex/keyword-driven natural-language
// heuristics the parse demon needs: tokenization, stop-word filtering,
// noun-phrase extraction, intent classification, and subject
// classification. These are intentionally shallow ordered-table lookups,
// not a statistical parser.
package nlp

import (
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"
)

// stopwordSet uses github.com/orsinium-labs/stopwords's English list rather
// than a hand-rolled one.
var stopwordSet = stopwords.MustGet("en")

// IsStopWord reports whether word (already lower-cased) is a stop word.
func IsStopWord(word string) bool {
	return stopwordSet.Contains(word)
}

// Tokenize lower-cases s, strips punctuation (keeping letters, digits, and
// the apostrophe inside contractions), and splits on whitespace.
func Tokenize(s string) []string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			b.WriteRune(r)
		case r == '\'':
			// keep contractions ("don't") intact
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}
