package phonetic_test

import (
	"testing"

	"github.com/coldsoak/readback/internal/phonetic"
)

func TestExpandTail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		token   string
		want    string
		matched bool
	}{
		{"N443DF", "November Four Four Three Delta Foxtrot", true},
		{"n443df", "November Four Four Three Delta Foxtrot", true},
		{"N123", "November One Two Three", true},
		{"ready", "ready", false},
		{"N12", "N12", false},       // too short after the prefix
		{"443DF", "443DF", false},   // no registration prefix
		{"", "", false},
	}

	for _, tt := range tests {
		got, matched := phonetic.ExpandTail(tt.token)
		if got != tt.want || matched != tt.matched {
			t.Errorf("ExpandTail(%q) = (%q, %v), want (%q, %v)",
				tt.token, got, matched, tt.want, tt.matched)
		}
	}
}

func TestExpandLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want string
	}{
		{
			"tail inside a line",
			"Iceman to N443DF, holding short",
			"Iceman to November Four Four Three Delta Foxtrot, holding short",
		},
		{
			"no tail",
			"brakes set, ready for de-ice",
			"brakes set, ready for de-ice",
		},
		{
			"two tails",
			"N12AB cleared, N987 hold",
			"November One Two Alpha Bravo cleared, November Nine Eight Seven hold",
		},
		{
			"ordinary word starting with n is untouched",
			"taxi north to the pad",
			"taxi north to the pad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := phonetic.ExpandLine(tt.line); got != tt.want {
				t.Errorf("ExpandLine(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestExpand_SingleCharacters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"a", "Alpha"},
		{"Z", "Zulu"},
		{"7", "Seven"},
		{"x", "Xray"},
		{"-", "-"}, // unmapped runes pass through
		{"", ""},
	}

	for _, tt := range tests {
		if got := phonetic.Expand(tt.in); got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLenientMatcher(t *testing.T) {
	t.Parallel()

	m := phonetic.NewLenientMatcher()

	accept := [][2]string{
		{"alpha", "alfa"},
		{"whiskey", "whisky"},
		{"juliet", "juliett"},
		{"holding", "Holding"},
	}
	for _, pair := range accept {
		if !m.TokenEquals(pair[0], pair[1]) {
			t.Errorf("TokenEquals(%q, %q) = false, want true", pair[0], pair[1])
		}
	}

	reject := [][2]string{
		{"alpha", "bravo"},
		{"two", "three"},
		{"cleared", ""},
		{"", "cleared"},
	}
	for _, pair := range reject {
		if m.TokenEquals(pair[0], pair[1]) {
			t.Errorf("TokenEquals(%q, %q) = true, want false", pair[0], pair[1])
		}
	}
}

func TestLenientMatcher_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	// An impossibly high threshold rejects everything except exact matches.
	m := phonetic.NewLenientMatcher(phonetic.WithLenientThreshold(1.01))

	if m.TokenEquals("alpha", "alfa") {
		t.Error("TokenEquals accepted a near-match above threshold 1.01")
	}
	if !m.TokenEquals("alpha", "alpha") {
		t.Error("TokenEquals rejected an exact match")
	}
}
