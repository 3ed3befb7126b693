package rules

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
)

// matchTimeout bounds a single rule application so one catastrophic pattern
// cannot stall the whole pipeline.
const matchTimeout = 2 * time.Second

// Engine applies rules to text in strict order. A rule that fails to compile
// or errors during substitution is recorded and skipped; it never aborts the
// remaining rules.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a rule engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Apply runs every enabled rule over text in the order given and returns the
// transformed text plus any per-rule errors. Ordering is the caller's
// contract: later rules may depend on earlier rules' output.
func (e *Engine) Apply(text string, ruleList []Rule) (string, []RuleError) {
	var errs []RuleError
	for _, rule := range ruleList {
		if !rule.Enabled {
			continue
		}
		out, err := e.applyOne(text, rule)
		if err != nil {
			errs = append(errs, RuleError{Description: rule.Description, Find: rule.Find, Err: err})
			e.logger.Warn("Rule skipped",
				zap.String("description", rule.Description),
				zap.String("find", rule.Find),
				zap.Error(err),
			)
			continue
		}
		text = out
	}
	return text, errs
}

func (e *Engine) applyOne(text string, rule Rule) (string, error) {
	flags := rule.NormalizedFlags()
	enhanced := rule.EnhancedBoundary || strings.Contains(flags, "e")
	flags = strings.ReplaceAll(flags, "e", "")

	pattern := RewriteBoundaries(rule.Find, enhanced)

	opts := regexp2.None
	if strings.Contains(flags, "i") {
		opts |= regexp2.IgnoreCase
	}
	if strings.Contains(flags, "m") {
		opts |= regexp2.Multiline
	}

	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return "", err
	}
	re.MatchTimeout = matchTimeout

	count := 1
	if strings.Contains(flags, "g") {
		count = -1
	}

	if rule.Replacer != nil {
		return re.ReplaceFunc(text, func(m regexp2.Match) string {
			groups := make([]string, m.GroupCount())
			for i := range groups {
				groups[i] = m.GroupByNumber(i).String()
			}
			return rule.Replacer(groups)
		}, -1, count)
	}
	return re.Replace(text, TranslateReplacement(rule.Replace), -1, count)
}

// TranslateReplacement converts JS-style backreferences (\1, \2, ...) into
// the engine's native ${n} syntax. An escaped reference (\\1) stays a literal
// backslash followed by the digits, and literal $ signs are protected from
// being read as group references.
func TranslateReplacement(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '$':
			b.WriteString("$$")
		case c == '\\' && i+2 < len(s) && s[i+1] == '\\' && isDigit(s[i+2]):
			b.WriteByte('\\')
			b.WriteByte(s[i+2])
			i += 2
		case c == '\\' && i+1 < len(s) && isDigit(s[i+1]):
			j := i + 1
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			b.WriteString("${")
			b.WriteString(s[i+1 : j])
			b.WriteString("}")
			i = j - 1
		case c == '\\' && i+1 < len(s):
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
