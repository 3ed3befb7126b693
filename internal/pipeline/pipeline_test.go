package pipeline

import (
	"strings"
	"testing"

	"github.com/raaihank/lyricsmith/internal/rules"
	"go.uber.org/zap"
)

func TestCorrect_Defaults(t *testing.T) {
	c := NewCorrector(zap.NewNop())

	in := "she gotta 15 cats and 200 dollars ma-"
	got := c.Correct(in, DefaultSettings(), nil)

	// Numbers stay digits until the user opts in; the trailing hyphen
	// becomes an em dash.
	if !strings.Contains(got.Text, "15 cats") || !strings.Contains(got.Text, "200 dollars") {
		t.Errorf("Numbers rewritten without opt-in: %q", got.Text)
	}
	if !strings.HasSuffix(got.Text, "ma—") {
		t.Errorf("Trailing hyphen not fixed: %q", got.Text)
	}
	if len(got.RuleErrors) != 0 {
		t.Errorf("RuleErrors = %v", got.RuleErrors)
	}
}

func TestCorrect_NumberToText(t *testing.T) {
	c := NewCorrector(zap.NewNop())
	settings := DefaultSettings()
	settings.NumberToText = true

	got := c.Correct("she gotta 15 cats and 200 dollars ma-", settings, nil)

	want := "she gotta fifteen cats and two hundred dollars ma—"
	if got.Text != want {
		t.Errorf("Correct = %q, want %q", got.Text, want)
	}
}

func TestCorrect_StageOrder(t *testing.T) {
	c := NewCorrector(zap.NewNop())
	settings := DefaultSettings()
	settings.NumberToText = true

	// The user rule rewrites a word into a number; conversion runs after the
	// rules, so the produced digits get converted too.
	userRules := []rules.Rule{{
		Description: "word to digits",
		Find:        "dozen",
		Replace:     "12",
		Flags:       "g",
		Enabled:     true,
	}}

	got := c.Correct("a dozen roses", settings, userRules)
	if got.Text != "a twelve roses" {
		t.Errorf("Correct = %q, want %q", got.Text, "a twelve roses")
	}
}

func TestCorrect_Contractions(t *testing.T) {
	c := NewCorrector(zap.NewNop())

	// Off by default; only the dash fix applies.
	got := c.Correct("Dont stop, im here ma-", DefaultSettings(), nil)
	if got.Text != "Dont stop, im here ma—" {
		t.Errorf("Correct with defaults = %q", got.Text)
	}

	settings := DefaultSettings()
	settings.Contractions = true
	got = c.Correct("Dont stop, im here", settings, nil)
	if got.Text != "Don't stop, I'm here" {
		t.Errorf("Correct = %q", got.Text)
	}
}

func TestCorrect_BracketWarnings(t *testing.T) {
	c := NewCorrector(zap.NewNop())

	got := c.Correct("(Chorus missing close", DefaultSettings(), nil)
	if !strings.Contains(got.Text, "⚠") {
		t.Errorf("Unmatched bracket not flagged: %q", got.Text)
	}

	settings := DefaultSettings()
	settings.BracketWarnings = false
	got = c.Correct("(Chorus missing close", settings, nil)
	if strings.Contains(got.Text, "⚠") {
		t.Errorf("Bracket warning emitted while disabled: %q", got.Text)
	}
}

func TestCorrect_BadUserRuleIsSkipped(t *testing.T) {
	c := NewCorrector(zap.NewNop())

	userRules := []rules.Rule{
		{Description: "broken", Find: "(unclosed", Replace: "x", Flags: "g", Enabled: true},
		{Description: "fine", Find: "cat", Replace: "dog", Flags: "g", Enabled: true},
	}
	got := c.Correct("cat", DefaultSettings(), userRules)
	if got.Text != "dog" {
		t.Errorf("Correct = %q, want dog", got.Text)
	}
	if len(got.RuleErrors) != 1 || got.RuleErrors[0].Description != "broken" {
		t.Errorf("RuleErrors = %v", got.RuleErrors)
	}
}

func TestCandidates(t *testing.T) {
	c := NewCorrector(zap.NewNop())

	text, candidates, errs := c.Candidates("got 5 cars and a 747", DefaultSettings(), nil)
	if len(errs) != 0 {
		t.Fatalf("RuleErrors = %v", errs)
	}
	if text != "got 5 cars and a 747" {
		t.Errorf("Rule stage changed text: %q", text)
	}
	if len(candidates) != 2 {
		t.Fatalf("Candidates = %d, want 2", len(candidates))
	}
	if candidates[0].Original != "5" || candidates[0].Converted != "five" {
		t.Errorf("First candidate = %+v", candidates[0])
	}
	if candidates[1].Original != "747" {
		t.Errorf("Second candidate = %+v", candidates[1])
	}
}
