// Package textutil normalizes free text for keyword matching and hashing.
package textutil

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true, "by": true,
	"do": true, "does": true, "for": true, "from": true, "has": true, "have": true, "how": true,
	"i": true, "in": true, "is": true, "it": true, "me": true, "my": true, "of": true, "on": true,
	"or": true, "our": true, "the": true, "this": true, "to": true, "us": true, "was": true,
	"we": true, "what": true, "when": true, "which": true, "who": true, "with": true, "you": true,
	"your": true, "about": true, "can": true, "tell": true, "show": true, "give": true,
}

// Tokens lowercases s and splits it into words, dropping stopwords.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

// Terms returns the tokens of s followed by adjacent bigrams, so two-word
// keywords such as "brand film" can match.
func Terms(s string) []string {
	tokens := Tokens(s)
	out := make([]string, 0, 2*len(tokens))
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

// Normalize lowercases s, strips punctuation and collapses whitespace.
func Normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// ContainsAny reports whether any of want is in terms.
func ContainsAny(terms []string, want ...string) bool {
	for _, t := range terms {
		for _, w := range want {
			if t == w {
				return true
			}
		}
	}
	return false
}
