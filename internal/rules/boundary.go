package rules

import "strings"

// Boundary character classes. Plain rules treat only whitespace and string
// edges as word boundaries, which mirrors how the rules behave inside the
// editor they were written against. Enhanced boundaries add brackets, common
// punctuation and the dash family, so a simple pattern like \bza\b matches
// "(za)" and "za." without hand-written lookarounds.
const (
	plainBoundaryClass    = `\s`
	enhancedBoundaryClass = `\s()\[\]{}.,!?;:'"` + "`" + `—–-`
)

// RewriteBoundaries rewrites every unescaped \b token in pattern into a
// lookaround pair over the given boundary class. An enhanced-boundary rule
// whose pattern contains no \b at all gets the whole pattern wrapped in the
// same pair.
func RewriteBoundaries(pattern string, enhanced bool) string {
	class := plainBoundaryClass
	if enhanced {
		class = enhancedBoundaryClass
	}
	boundary := `(?:(?<=[` + class + `]|^)|(?=[` + class + `]|$))`

	rewritten, replaced := replaceBoundaryTokens(pattern, boundary)
	if !replaced && enhanced {
		return `(?<=[` + class + `]|^)(?:` + pattern + `)(?=[` + class + `]|$)`
	}
	return rewritten
}

// replaceBoundaryTokens substitutes \b assertions, leaving \\b (an escaped
// backslash followed by a literal b) untouched.
func replaceBoundaryTokens(pattern, boundary string) (string, bool) {
	var b strings.Builder
	replaced := false
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '\\' && i+1 < len(pattern) {
			if pattern[i+1] == 'b' {
				b.WriteString(boundary)
				replaced = true
				i++
				continue
			}
			b.WriteByte(pattern[i])
			b.WriteByte(pattern[i+1])
			i++
			continue
		}
		b.WriteByte(pattern[i])
	}
	return b.String(), replaced
}
