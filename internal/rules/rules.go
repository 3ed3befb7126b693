// Package rules implements the ordered find/replace rule engine: fixed
// built-in rules plus user-defined regex rules, with the enhanced-boundary
// matching mode and JS-style replacement translation.
package rules

import (
	"fmt"
	"strings"
)

// Rule is a single find/replace rule. Find holds a regex source in the
// JS-flavored syntax user rules are written in; Flags holds single-letter
// flags where "g" means replace-all, "i" case-insensitive, "m" multiline and
// the synthetic "e" requests enhanced boundaries.
type Rule struct {
	Description      string `json:"description"`
	Find             string `json:"find"`
	Replace          string `json:"replace"`
	Flags            string `json:"flags"`
	Enabled          bool   `json:"enabled"`
	EnhancedBoundary bool   `json:"enhancedBoundary,omitempty"`

	// Replacer is a computed replacement for compiled-in built-ins. It is
	// never serialized: persisted rules are restricted to literal and
	// backreference replacements.
	Replacer func(groups []string) string `json:"-"`
}

// Key returns the structural identity used for merge deduplication.
func (r Rule) Key() string {
	return r.Find + "\x00" + r.Replace
}

// NormalizedFlags returns Flags with duplicates removed, preserving first
// occurrence order.
func (r Rule) NormalizedFlags() string {
	var b strings.Builder
	for _, f := range r.Flags {
		if !strings.ContainsRune(b.String(), f) {
			b.WriteRune(f)
		}
	}
	return b.String()
}

// RuleError records a rule that failed to compile or substitute. The engine
// skips the rule and continues; nothing here is fatal.
type RuleError struct {
	Description string
	Find        string
	Err         error
}

func (e RuleError) Error() string {
	return fmt.Sprintf("rule %q (%s): %v", e.Description, e.Find, e.Err)
}
