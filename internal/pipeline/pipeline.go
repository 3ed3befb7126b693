// Package pipeline composes the full correction pass: built-in fixes, user
// rules, optional number-to-text conversion and bracket warnings, in that
// fixed order.
package pipeline

import (
	"github.com/raaihank/lyricsmith/internal/brackets"
	"github.com/raaihank/lyricsmith/internal/convert"
	"github.com/raaihank/lyricsmith/internal/rules"
	"go.uber.org/zap"
)

// Settings selects which correction stages run. The zero value is not
// meaningful; use DefaultSettings as the base and override from there.
type Settings struct {
	Contractions    bool   `json:"contractions"`
	Stutter         bool   `json:"stutter"`
	DashFixes       bool   `json:"dashFixes"`
	DashType        string `json:"dashType"` // "em" or "en"
	NumberToText    bool   `json:"numberToText"`
	BracketWarnings bool   `json:"bracketWarnings"`
}

// DefaultSettings matches a fresh install: dash fixes and bracket warnings
// on, the wording rewrites (contractions, stutter, numbers) off until the
// user opts in.
func DefaultSettings() Settings {
	return Settings{
		Contractions:    false,
		Stutter:         false,
		DashFixes:       true,
		DashType:        "em",
		NumberToText:    false,
		BracketWarnings: true,
	}
}

// Result is the outcome of a correction pass. RuleErrors lists user rules
// that were skipped; the pass itself never fails.
type Result struct {
	Text       string            `json:"text"`
	RuleErrors []rules.RuleError `json:"-"`
}

// Corrector runs correction passes. It is stateless apart from its engine
// and safe for concurrent use.
type Corrector struct {
	engine *rules.Engine
	logger *zap.Logger
}

// NewCorrector creates a corrector.
func NewCorrector(logger *zap.Logger) *Corrector {
	return &Corrector{
		engine: rules.NewEngine(logger),
		logger: logger,
	}
}

// Correct applies the full pass to text: built-ins first, then the user's
// rules in store order, then number conversion, then bracket annotation.
// Built-ins run first so user rules see normalized text.
func (c *Corrector) Correct(text string, settings Settings, userRules []rules.Rule) Result {
	ruleList := rules.Builtins(rules.BuiltinOptions{
		Contractions: settings.Contractions,
		Stutter:      settings.Stutter,
		DashFixes:    settings.DashFixes,
		DashType:     settings.DashType,
	})
	ruleList = append(ruleList, userRules...)

	out, errs := c.engine.Apply(text, ruleList)

	if settings.NumberToText {
		out = convert.All(out)
	}
	if settings.BracketWarnings {
		out = brackets.Annotate(out)
	}

	return Result{Text: out, RuleErrors: errs}
}

// Candidates runs the rule stages only, then discovers number-conversion
// candidates over the result. The interactive flow uses this instead of
// Correct so the user decides each conversion.
func (c *Corrector) Candidates(text string, settings Settings, userRules []rules.Rule) (string, []convert.Conversion, []rules.RuleError) {
	ruleList := rules.Builtins(rules.BuiltinOptions{
		Contractions: settings.Contractions,
		Stutter:      settings.Stutter,
		DashFixes:    settings.DashFixes,
		DashType:     settings.DashType,
	})
	ruleList = append(ruleList, userRules...)

	out, errs := c.engine.Apply(text, ruleList)
	return out, convert.FindCandidates(out), errs
}
