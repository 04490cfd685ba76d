// Package score computes how well a spoken or typed response matches an
// expected phrase.
//
// Scoring is set-membership over normalized tokens: every unique token of
// the expected phrase either appears somewhere in the response (a hit) or it
// does not (a miss). Word order and extra words in the response are ignored
// — a trainee who reads back the clearance with "brakes set" appended has
// still read back the clearance. The percentage is hits over expected-token
// count, with an empty expectation defined as trivially satisfied.
package score

import (
	"github.com/coldsoak/readback/internal/text"
)

// TokenMatcher decides whether a heard token counts as a match for an
// expected token beyond exact equality. [phonetic.LenientMatcher] is the
// production implementation; a nil matcher restricts scoring to exact
// normalized equality.
type TokenMatcher interface {
	TokenEquals(expected, heard string) bool
}

// Result is the outcome of scoring one response against one expected phrase.
// Pct is always in [0, 1]; Misses preserves the expected phrase's token order.
type Result struct {
	// Hit is the number of expected tokens found in the response.
	Hit int

	// Total is the number of unique expected tokens.
	Total int

	// Pct is Hit/Total, or 1 when Total is zero.
	Pct float64

	// Misses lists the expected tokens not found, in original order.
	Misses []string
}

// Option is a functional option for configuring a [Scorer].
type Option func(*Scorer)

// WithThreshold sets the pass threshold applied by [Scorer.Passes].
// Observed call sites use 0.6 (guided drills) and 0.8 (quiz and strict
// drills); the default is 0.8.
func WithThreshold(threshold float64) Option {
	return func(s *Scorer) {
		s.threshold = threshold
	}
}

// WithTokenMatcher attaches a lenient token matcher consulted for expected
// tokens that have no exact counterpart in the response. When nil (the
// default), only exact normalized equality counts.
func WithTokenMatcher(m TokenMatcher) Option {
	return func(s *Scorer) {
		s.lenient = m
	}
}

// DefaultThreshold is the pass threshold used when none is configured.
const DefaultThreshold = 0.8

// Scorer grades responses against expected phrases. Safe for concurrent use
// — a Scorer is read-only after construction.
type Scorer struct {
	threshold float64
	lenient   TokenMatcher
}

// New returns a [Scorer] configured with the supplied options.
func New(opts ...Option) *Scorer {
	s := &Scorer{threshold: DefaultThreshold}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Threshold returns the configured pass threshold.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Score grades heard against the unique tokens of the expected phrase.
// It never fails: empty inputs produce a well-formed Result, and an empty
// expectation yields Pct == 1.
func (s *Scorer) Score(expected, heard string) Result {
	return s.ScoreTokens(text.UniqueTokens(expected), heard)
}

// ScoreTokens grades heard against an already-derived unique expected token
// set. Tokens must be in normalized form (lowercase, no punctuation);
// duplicates are counted once, at their first position.
func (s *Scorer) ScoreTokens(expected []string, heard string) Result {
	heardTokens := text.Tokenize(heard)
	heardSet := make(map[string]struct{}, len(heardTokens))
	for _, t := range heardTokens {
		heardSet[t] = struct{}{}
	}

	seen := make(map[string]struct{}, len(expected))
	r := Result{}
	for _, want := range expected {
		if _, dup := seen[want]; dup {
			continue
		}
		seen[want] = struct{}{}
		r.Total++
		if s.tokenHeard(want, heardTokens, heardSet) {
			r.Hit++
		} else {
			r.Misses = append(r.Misses, want)
		}
	}

	if r.Total == 0 {
		r.Pct = 1
	} else {
		r.Pct = float64(r.Hit) / float64(r.Total)
	}
	return r
}

// Passes reports whether r meets the configured pass threshold.
func (s *Scorer) Passes(r Result) bool {
	return r.Pct >= s.threshold
}

// DirectMatch reports whether answer, squashed and lowercased, exactly
// equals the squashed prompt. The quiz engine accepts a direct match
// regardless of token score, so typing "n443df" answers the prompt "N443DF".
func DirectMatch(prompt, answer string) bool {
	squashed := text.Squash(answer)
	return squashed != "" && squashed == text.Squash(prompt)
}

func (s *Scorer) tokenHeard(want string, heardTokens []string, heardSet map[string]struct{}) bool {
	if _, ok := heardSet[want]; ok {
		return true
	}
	if s.lenient == nil {
		return false
	}
	for _, got := range heardTokens {
		if s.lenient.TokenEquals(want, got) {
			return true
		}
	}
	return false
}
