// Package text provides the canonical normalization and tokenization used to
// compare expected phrases against spoken or typed responses.
//
// Normalization is deliberately lossy: case, punctuation, and whitespace
// layout carry no meaning over a de-icing frequency, so they are erased
// before any comparison. Every scoring path in the system goes through this
// package so that the definition of "the same words" exists in exactly one
// place.
package text

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes free text for comparison. It lowercases the input,
// replaces every rune that is not a letter, digit, or whitespace with a
// single space, collapses whitespace runs, and trims both ends.
//
// Normalize is pure and total: it never fails, and an empty input yields an
// empty string. It is idempotent — Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true // leading whitespace is dropped
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			// Punctuation and whitespace both collapse to one separator.
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimRight(b.String(), " ")
}

// Tokenize splits the normalized form of s on whitespace, dropping empty
// tokens. The returned slice preserves token order and duplicates.
func Tokenize(s string) []string {
	return strings.Fields(Normalize(s))
}

// UniqueTokens returns the tokens of s with duplicates removed, preserving
// first-occurrence order. This is the form expected phrases are reduced to
// before scoring.
func UniqueTokens(s string) []string {
	tokens := Tokenize(s)
	if len(tokens) < 2 {
		return tokens
	}

	seen := make(map[string]struct{}, len(tokens))
	unique := tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}
	return unique
}

// Squash returns the normalized form of s with all internal whitespace
// removed. Used by the quiz engine's direct-match shortcut, where "n four
// four three" and "n443" should compare by their compact spellings.
func Squash(s string) string {
	return strings.ReplaceAll(Normalize(s), " ", "")
}
