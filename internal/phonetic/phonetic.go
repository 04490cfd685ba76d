// Package phonetic expands aircraft tail designators and single characters
// into their NATO/ICAO phonetic-alphabet spelling.
//
// Expansion is used to build the grading form of a scripted line: a crew
// member is expected to read "N443DF" back as "November Four Four Three
// Delta Foxtrot", so the scorer must compare against the spoken words, not
// the compact designator. The display form of a line is never touched.
package phonetic

import (
	"regexp"
	"strings"
	"unicode"
)

// tailPattern matches an aircraft-registration-shaped token inside a line:
// the letter "N" (US registration prefix) followed by three or more
// alphanumerics. The in-line form is case-sensitive — scripted lines author
// tails in uppercase, and matching lowercase would swallow ordinary words
// like "north" or an already-expanded "November".
var tailPattern = regexp.MustCompile(`N[0-9A-Z]{3,}`)

// tailToken is the whole-token form, case-insensitive because quiz answers
// and typed responses arrive in arbitrary case.
var tailToken = regexp.MustCompile(`(?i)^N[0-9A-Z]{3,}$`)

// words maps each letter and digit to its phonetic-alphabet word.
// "Xray" is spelled without the hyphen so that it survives normalization as
// a single token.
var words = map[rune]string{
	'a': "Alpha", 'b': "Bravo", 'c': "Charlie", 'd': "Delta",
	'e': "Echo", 'f': "Foxtrot", 'g': "Golf", 'h': "Hotel",
	'i': "India", 'j': "Juliet", 'k': "Kilo", 'l': "Lima",
	'm': "Mike", 'n': "November", 'o': "Oscar", 'p': "Papa",
	'q': "Quebec", 'r': "Romeo", 's': "Sierra", 't': "Tango",
	'u': "Uniform", 'v': "Victor", 'w': "Whiskey", 'x': "Xray",
	'y': "Yankee", 'z': "Zulu",

	'0': "Zero", '1': "One", '2': "Two", '3': "Three", '4': "Four",
	'5': "Five", '6': "Six", '7': "Seven", '8': "Eight", '9': "Nine",
}

// Expand returns the phonetic expansion of every letter and digit in token,
// joined with single spaces. Runes without a phonetic word (punctuation,
// symbols) pass through unchanged as their own token. An empty token yields
// an empty string.
func Expand(token string) string {
	var parts []string
	for _, r := range token {
		if w, ok := words[unicode.ToLower(r)]; ok {
			parts = append(parts, w)
		} else if !unicode.IsSpace(r) {
			parts = append(parts, string(r))
		}
	}
	return strings.Join(parts, " ")
}

// ExpandTail expands token when it is shaped like an aircraft tail
// designator. The second return value reports whether the token matched;
// when it is false the first return value is token unchanged, and callers
// must keep the original text.
func ExpandTail(token string) (string, bool) {
	if !tailToken.MatchString(token) {
		return token, false
	}
	return Expand(token), true
}

// ExpandLine substitutes every tail-shaped token within line with its
// phonetic expansion, leaving all other text intact. This produces the
// grading line for a scripted turn; the caller retains the original line
// for display.
func ExpandLine(line string) string {
	return tailPattern.ReplaceAllStringFunc(line, Expand)
}
