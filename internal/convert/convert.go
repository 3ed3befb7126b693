// Package convert turns the digits left over after span protection into
// their word forms. It has two consumers with one shared scan: batch mode
// rewrites everything at once, discovery mode produces the candidate list the
// interactive negotiator walks through.
package convert

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/raaihank/lyricsmith/internal/numwords"
	"github.com/raaihank/lyricsmith/internal/protect"
)

// Conversion is a single proposed number-to-text substitution. Position is an
// offset into the text as it existed at discovery time; consumers must
// re-resolve it before applying because earlier edits shift offsets.
type Conversion struct {
	Original  string `json:"original"`
	Converted string `json:"converted"`
	Position  int    `json:"position"`
	UID       string `json:"uid"`
}

const uidContextWindow = 20

var (
	pluralNumber     = regexp.MustCompile(`\b(\d{1,3})s\b`)
	thousandsK       = regexp.MustCompile(`\b(\d{1,3})[kK]\b`)
	standaloneNumber = regexp.MustCompile(`\b\d{1,3}\b`)
)

// All converts every unprotected number in text to words in one pass.
func All(text string) string {
	working, ranges := protect.Apply(text)

	working = pluralNumber.ReplaceAllStringFunc(working, func(m string) string {
		words, err := numwords.ToPluralWords(mustAtoi(m[:len(m)-1]))
		if err != nil {
			return m
		}
		return words
	})

	working = thousandsK.ReplaceAllStringFunc(working, func(m string) string {
		return convertRoundK(m)
	})

	working = standaloneNumber.ReplaceAllStringFunc(working, func(m string) string {
		words, err := numwords.ToWords(mustAtoi(m))
		if err != nil {
			return m
		}
		return words
	})

	return protect.Restore(working, ranges)
}

// FindCandidates returns every convertible number in text, in ascending
// position order, with protected spans excluded. The same protection step
// list drives both this scan and All.
func FindCandidates(text string) []Conversion {
	spans := protect.Spans(text)

	type interval struct{ start, end int }
	var claimed []interval
	overlapsClaimed := func(start, end int) bool {
		for _, iv := range claimed {
			if start < iv.end && end > iv.start {
				return true
			}
		}
		return false
	}
	overlapsSpan := func(start, end int) bool {
		for _, sp := range spans {
			if start < sp.End && end > sp.Start {
				return true
			}
		}
		return false
	}

	var candidates []Conversion
	add := func(start, end int, converted string) {
		original := text[start:end]
		candidates = append(candidates, Conversion{
			Original:  original,
			Converted: converted,
			Position:  start,
			UID:       UID(original, start, text),
		})
		claimed = append(claimed, interval{start, end})
	}

	// The hundred idiom is discovered during protection but offered as a
	// candidate rather than silently rewritten.
	for _, sp := range spans {
		if sp.Candidate {
			add(sp.Start, sp.End, sp.Replacement)
		}
	}

	for _, idx := range pluralNumber.FindAllStringIndex(text, -1) {
		if overlapsSpan(idx[0], idx[1]) || overlapsClaimed(idx[0], idx[1]) {
			continue
		}
		m := text[idx[0]:idx[1]]
		words, err := numwords.ToPluralWords(mustAtoi(m[:len(m)-1]))
		if err != nil {
			continue
		}
		add(idx[0], idx[1], words)
	}

	for _, idx := range thousandsK.FindAllStringIndex(text, -1) {
		if overlapsSpan(idx[0], idx[1]) || overlapsClaimed(idx[0], idx[1]) {
			continue
		}
		m := text[idx[0]:idx[1]]
		if converted := convertRoundK(m); converted != m {
			add(idx[0], idx[1], converted)
		}
	}

	for _, idx := range standaloneNumber.FindAllStringIndex(text, -1) {
		if overlapsSpan(idx[0], idx[1]) || overlapsClaimed(idx[0], idx[1]) {
			continue
		}
		words, err := numwords.ToWords(mustAtoi(text[idx[0]:idx[1]]))
		if err != nil {
			continue
		}
		add(idx[0], idx[1], words)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Position < candidates[j].Position
	})
	return candidates
}

// UID derives the durable decline key for a candidate from its text, its
// discovery-time position and twenty characters of context on each side.
// Two occurrences of the same literal number at different places therefore
// get independent keys.
func UID(original string, position int, text string) string {
	start := position - uidContextWindow
	if start < 0 {
		start = 0
	}
	end := position + len(original) + uidContextWindow
	if end > len(text) {
		end = len(text)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", original, position, text[start:end])))
	return hex.EncodeToString(sum[:])[:16]
}

// convertRoundK rewrites "100K" as "one hundred K". Non-multiples of 100 are
// protected upstream, so anything else passes through untouched.
func convertRoundK(m string) string {
	n := mustAtoi(m[:len(m)-1])
	if n == 0 || n%100 != 0 {
		return m
	}
	words, err := numwords.ToWords(n)
	if err != nil {
		return m
	}
	return words + " " + m[len(m)-1:]
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
