package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const defaultLenientThreshold = 0.72

// LenientOption is a functional option for configuring a [LenientMatcher].
type LenientOption func(*LenientMatcher)

// WithLenientThreshold sets the minimum Jaro-Winkler score required for two
// phonetically-overlapping tokens to be considered equal. Default: 0.72.
func WithLenientThreshold(threshold float64) LenientOption {
	return func(m *LenientMatcher) {
		m.threshold = threshold
	}
}

// LenientMatcher decides whether a heard token counts as a match for an
// expected token when the two are not spelled identically. Speech
// recognizers routinely return "alfa" for "alpha" or "tree" for "three";
// failing a trainee over transcription spelling defeats the drill.
//
// The decision combines Double Metaphone phonetic encoding with Jaro-Winkler
// string similarity: tokens must share at least one metaphone code AND score
// at or above the configured similarity threshold. Exact matches short-circuit.
//
// All methods are safe for concurrent use — the matcher is read-only after
// construction.
type LenientMatcher struct {
	threshold float64
}

// NewLenientMatcher returns a [LenientMatcher] configured with the supplied
// options.
func NewLenientMatcher(opts ...LenientOption) *LenientMatcher {
	m := &LenientMatcher{threshold: defaultLenientThreshold}
	for _, o := range opts {
		o(m)
	}
	return m
}

// TokenEquals reports whether heard should be accepted as a match for
// expected. Both tokens are compared case-insensitively.
func (m *LenientMatcher) TokenEquals(expected, heard string) bool {
	expected = strings.ToLower(strings.TrimSpace(expected))
	heard = strings.ToLower(strings.TrimSpace(heard))
	if expected == "" || heard == "" {
		return false
	}
	if expected == heard {
		return true
	}

	if !codesOverlap(expected, heard) {
		return false
	}
	return matchr.JaroWinkler(expected, heard, false) >= m.threshold
}

// codesOverlap reports whether the Double Metaphone codes of the two tokens
// share at least one entry. Empty codes (tokens with no consonants) never
// overlap.
func codesOverlap(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || (bs != "" && x == bs) {
			return true
		}
	}
	return false
}
