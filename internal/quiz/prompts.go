package quiz

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/coldsoak/readback/internal/phonetic"
	"github.com/coldsoak/readback/internal/text"
)

// Mode selects what kind of prompts a quiz round draws.
type Mode string

const (
	// ModeLetters prompts single letters A-Z.
	ModeLetters Mode = "letters"

	// ModeNumbers prompts single digits 0-9.
	ModeNumbers Mode = "numbers"

	// ModeMixed prompts a letter-digit pair, e.g. "K7".
	ModeMixed Mode = "mixed"

	// ModeCallsigns prompts a generated aircraft tail, e.g. "N443DF".
	ModeCallsigns Mode = "callsigns"
)

// IsValid reports whether m is a known quiz mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeLetters, ModeNumbers, ModeMixed, ModeCallsigns:
		return true
	}
	return false
}

// Prompt is one quiz item: the character sequence shown to the trainee and
// the phonetic tokens a correct spoken answer must contain.
type Prompt struct {
	// Display is the raw prompt text, e.g. "K", "7" or "N443DF".
	Display string `json:"display"`

	// Expected holds the normalized phonetic tokens, e.g. [kilo].
	Expected []string `json:"expected"`
}

const (
	letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits  = "0123456789"

	// Generated tails carry 3 to 5 characters after the registration prefix.
	tailMinBody = 3
	tailMaxBody = 5
)

// generator produces an endless stream of prompts for one mode. Not safe
// for concurrent use; the owning round serializes access.
type generator struct {
	mode Mode
	rnd  *rand.Rand
}

func newGenerator(mode Mode, rnd *rand.Rand) *generator {
	return &generator{mode: mode, rnd: rnd}
}

// next draws one prompt. The expected tokens are the normalized phonetic
// expansion of every prompt character.
func (g *generator) next() Prompt {
	var display string
	switch g.mode {
	case ModeNumbers:
		display = g.pick(digits)
	case ModeMixed:
		display = g.pick(letters) + g.pick(digits)
	case ModeCallsigns:
		display = g.tail()
	default:
		display = g.pick(letters)
	}
	return Prompt{Display: display, Expected: expectedTokens(display)}
}

func (g *generator) pick(alphabet string) string {
	return string(alphabet[g.rnd.Intn(len(alphabet))])
}

// tail builds a registration-shaped call sign: the "N" prefix followed by a
// leading digit and a random alphanumeric body. The leading digit keeps the
// result from colliding with ordinary words.
func (g *generator) tail() string {
	n := tailMinBody + g.rnd.Intn(tailMaxBody-tailMinBody+1)
	var b strings.Builder
	b.WriteByte('N')
	b.WriteString(g.pick(digits))
	for i := 1; i < n; i++ {
		b.WriteString(g.pick(letters + digits))
	}
	return b.String()
}

// expectedTokens expands each prompt character to its phonetic word and
// normalizes the result into grading tokens.
func expectedTokens(display string) []string {
	words := make([]string, 0, len(display))
	for _, r := range display {
		words = append(words, phonetic.Expand(string(r)))
	}
	return text.UniqueTokens(strings.Join(words, " "))
}

// validateMode returns a descriptive error for unknown modes.
func validateMode(m Mode) error {
	if !m.IsValid() {
		return fmt.Errorf("quiz: unknown mode %q", m)
	}
	return nil
}
