package text_test

import (
	"reflect"
	"testing"

	"github.com/coldsoak/readback/internal/text"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"already normal", "holding short alpha", "holding short alpha"},
		{"uppercase", "HOLDING SHORT Alpha", "holding short alpha"},
		{"punctuation", "Iceman, ready — brakes set.", "iceman ready brakes set"},
		{"whitespace runs", "  cleared\t\ttaxi \n spot  two ", "cleared taxi spot two"},
		{"digits kept", "N443DF cleared", "n443df cleared"},
		{"only punctuation", "?!—...", ""},
		{"hyphenated", "de-ice complete", "de ice complete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := text.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"Captain to Iceman: begin de-ice, N443DF!",
		"  lots\tof   spacing  ",
		"already normal text",
	}
	for _, in := range inputs {
		once := text.Normalize(in)
		if twice := text.Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	got := text.Tokenize("Cleared, taxi — Alpha: spot TWO.")
	want := []string{"cleared", "taxi", "alpha", "spot", "two"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}

	if got := text.Tokenize("   "); len(got) != 0 {
		t.Errorf("Tokenize(blank) = %v, want empty", got)
	}
}

func TestUniqueTokens(t *testing.T) {
	t.Parallel()

	got := text.UniqueTokens("four four three delta Delta foxtrot")
	want := []string{"four", "three", "delta", "foxtrot"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UniqueTokens = %v, want %v", got, want)
	}
}

func TestSquash(t *testing.T) {
	t.Parallel()

	if got := text.Squash("N 443 df"); got != "n443df" {
		t.Errorf("Squash = %q, want %q", got, "n443df")
	}
}
