package rules

import (
	"sort"
	"strings"
)

// DashRune maps a configured dash type to the character inserted by the dash
// fix rules.
func DashRune(dashType string) string {
	if dashType == "en" {
		return "–"
	}
	return "—"
}

// BuiltinOptions selects which fixed rules are active and how dashes are
// rendered.
type BuiltinOptions struct {
	Contractions bool
	DashFixes    bool
	DashType     string // "em" or "en"
	Stutter      bool
}

var contractionForms = map[string]string{
	"aint":     "ain't",
	"cant":     "can't",
	"dont":     "don't",
	"wont":     "won't",
	"didnt":    "didn't",
	"doesnt":   "doesn't",
	"isnt":     "isn't",
	"wasnt":    "wasn't",
	"werent":   "weren't",
	"couldnt":  "couldn't",
	"shouldnt": "shouldn't",
	"wouldnt":  "wouldn't",
	"im":       "I'm",
	"ive":      "I've",
	"youre":    "you're",
	"theyre":   "they're",
}

// Builtins returns the fixed rule list for the given options, in application
// order: contractions, stutter collapse, then dash fixes. All built-ins use
// enhanced boundaries so they fire next to punctuation.
func Builtins(opts BuiltinOptions) []Rule {
	var out []Rule

	if opts.Contractions {
		out = append(out, Rule{
			Description:      "missing contraction apostrophes",
			Find:             `\b(` + contractionAlternation() + `)\b`,
			Flags:            "gi",
			Enabled:          true,
			EnhancedBoundary: true,
			Replacer:         contractionReplacer,
		})
	}

	if opts.Stutter {
		out = append(out, Rule{
			Description:      "collapse stutter fragments",
			Find:             `\b([A-Za-z]{1,4})-\s+(?=\1)`,
			Replace:          `\1-`,
			Flags:            "g",
			Enabled:          true,
			EnhancedBoundary: false,
		})
	}

	if opts.DashFixes {
		dash := DashRune(opts.DashType)
		out = append(out,
			Rule{
				Description: "trailing hyphen to dash",
				Find:        `(\w)-[ \t]*$`,
				Replace:     `\1` + dash,
				Flags:       "gm",
				Enabled:     true,
			},
			Rule{
				Description: "spaced hyphen to dash",
				Find:        `(\w) - `,
				Replace:     `\1 ` + dash + ` `,
				Flags:       "g",
				Enabled:     true,
			},
		)
	}

	return out
}

func contractionAlternation() string {
	forms := make([]string, 0, len(contractionForms))
	for f := range contractionForms {
		forms = append(forms, f)
	}
	// Longest first so "wouldnt" is not half-matched by a shorter form.
	sort.Slice(forms, func(i, j int) bool {
		if len(forms[i]) != len(forms[j]) {
			return len(forms[i]) > len(forms[j])
		}
		return forms[i] < forms[j]
	})
	return strings.Join(forms, "|")
}

// contractionReplacer restores the apostrophe, preserving a leading capital.
func contractionReplacer(groups []string) string {
	match := groups[0]
	fixed, ok := contractionForms[strings.ToLower(match)]
	if !ok {
		return match
	}
	if match != "" && match[0] >= 'A' && match[0] <= 'Z' && fixed[0] >= 'a' && fixed[0] <= 'z' {
		fixed = strings.ToUpper(fixed[:1]) + fixed[1:]
	}
	return fixed
}
