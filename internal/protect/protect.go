// Package protect implements the protected-span tokenizer: an ordered scan
// that marks substrings which must never be altered by number conversion.
//
// The step order is fixed and load-bearing. Later patterns must not re-match
// text an earlier step already claimed (the long-digit-run step would happily
// eat the tail of a phone number), so every step skips matches that overlap a
// span recorded by an earlier step. The same step list drives both batch
// conversion and interactive candidate discovery.
package protect

import (
	"regexp"
	"sort"
	"strings"
)

// Category identifies which protection step claimed a span.
type Category string

const (
	CategoryBracketed    Category = "bracketed"
	CategoryHundredIdiom Category = "hundred_idiom"
	CategoryPhone        Category = "phone"
	CategoryTime         Category = "time"
	CategoryDecimal      Category = "decimal"
	CategoryPercentage   Category = "percentage"
	CategoryLongDigits   Category = "long_digits"
	CategoryCompound     Category = "compound"
	CategoryCaliber      Category = "caliber"
	CategoryProperNoun   Category = "proper_noun"
	CategoryIdiom        Category = "idiom"
	CategorySlang        Category = "slang"
	CategoryWhitelist    Category = "whitelist"
	CategoryThousandsK   Category = "thousands_k"
	CategoryModelCode    Category = "model_code"
)

// Span is a protected range over the original text. Replacement is the text
// restored into the output; for most categories it equals Original, for the
// normalizing categories (times, the "N hundred" idiom) it differs.
type Span struct {
	Start       int
	End         int
	Category    Category
	Original    string
	Replacement string
	// Candidate marks spans the interactive negotiator may offer as a
	// conversion instead of silently rewriting (the "N hundred" idiom).
	Candidate bool
}

// Range is the transient placeholder mapping produced by Apply.
type Range struct {
	Placeholder string
	Original    string
}

type step struct {
	name      string
	category  Category
	pattern   *regexp.Regexp
	spanGroup int // submatch index that delimits the span; 0 = whole match
	// accept filters matches after overlap checking. Nil accepts all.
	accept func(groups []string) bool
	// transform produces the restored text. Nil keeps the original.
	transform func(groups []string) string
	candidate bool
}

// The canonical step order. Any divergence between batch conversion and
// candidate discovery is a defect, so both consume this single list.
var steps = []step{
	{
		name:     "bracketed sections",
		category: CategoryBracketed,
		pattern:  regexp.MustCompile(`\[[^\[\]]*\]`),
	},
	{
		name:      "hundred idiom",
		category:  CategoryHundredIdiom,
		pattern:   regexp.MustCompile(`\b([1-9]\d?) hundred\b`),
		transform: hundredIdiomWords,
		candidate: true,
	},
	{
		name:     "phone numbers",
		category: CategoryPhone,
		pattern:  regexp.MustCompile(`\b\d{3}-(?:\d{3}-)?\d{4}\b`),
	},
	{
		name:      "clock times",
		category:  CategoryTime,
		pattern:   regexp.MustCompile(`(?i)\b(\d{1,2}):([0-5]\d)(?:\s*([ap])\.?m\.?)?\b`),
		transform: normalizeClockTime,
	},
	{
		name:     "o'clock times",
		category: CategoryTime,
		pattern:  regexp.MustCompile(`(?i)\b\d{1,2} o'?clock\b`),
	},
	{
		name:      "bare meridiem times",
		category:  CategoryTime,
		pattern:   regexp.MustCompile(`(?i)\b(\d{1,2})\s*([ap])\.?m\.?\b`),
		transform: normalizeBareMeridiem,
	},
	{
		name:     "decimals",
		category: CategoryDecimal,
		pattern:  regexp.MustCompile(`\b\d+\.\d+[a-zA-Z]*`),
	},
	{
		name:      "leading-dot decimals",
		category:  CategoryDecimal,
		pattern:   regexp.MustCompile(`(?:^|[\s(])(\.\d)\b`),
		spanGroup: 1,
	},
	{
		name:     "percentages",
		category: CategoryPercentage,
		pattern:  regexp.MustCompile(`\b\d+(?:\.\d+)?%`),
	},
	{
		name:     "long digit runs",
		category: CategoryLongDigits,
		pattern:  regexp.MustCompile(`\b\d{4,}s?\b`),
	},
	{
		name:     "digit-letter compounds",
		category: CategoryCompound,
		pattern:  regexp.MustCompile(`\b\d+(?:[A-Za-z]{2,}|[a-jl-rt-zA-JL-RT-Z])\b`),
	},
	{
		name:     "letter-digit compounds",
		category: CategoryCompound,
		pattern:  regexp.MustCompile(`\b[A-Za-z]{2,}\d+\b`),
	},
	{
		name:      "dot calibers",
		category:  CategoryCaliber,
		pattern:   regexp.MustCompile(`(?:^|[\s(])(\.\d{2,3})\b`),
		spanGroup: 1,
	},
	{
		name:     "millimeter calibers",
		category: CategoryCaliber,
		pattern:  regexp.MustCompile(`\b\d{1,3}mm\b`),
	},
	{
		name:     "proper nouns",
		category: CategoryProperNoun,
		pattern:  regexp.MustCompile(`(?i)\b(?:PlayStation [1-5]|Xbox (?:360|One)|Nintendo 64|Sega 32X|Area 51|50 Cent)\b`),
	},
	{
		name:     "numeric idioms",
		category: CategoryIdiom,
		pattern:  regexp.MustCompile(`\b(?:24/7|365|911|411)\b`),
	},
	{
		name:     "police slang",
		category: CategorySlang,
		pattern:  regexp.MustCompile(`(?i)\b5-0\b|\b(?:the|them|fuck|run(?:nin'?|ning)? from) 12\b`),
	},
	{
		name:     "whitelisted numbers",
		category: CategoryWhitelist,
		pattern:  regexp.MustCompile(`\b(?:69|187|420|808)s?\b`),
	},
	{
		name:     "non-round thousands shorthand",
		category: CategoryThousandsK,
		pattern:  regexp.MustCompile(`\b(\d{1,3})[kK]\b`),
		accept: func(groups []string) bool {
			return atoiSafe(groups[1])%100 != 0
		},
	},
	{
		name:     "single-letter model codes",
		category: CategoryModelCode,
		pattern:  regexp.MustCompile(`\b[A-Za-z]\d+\b`),
	},
}

// Spans scans text and returns every protected span in ascending start order.
// All offsets refer to the original text.
func Spans(text string) []Span {
	var spans []Span
	for _, st := range steps {
		for _, idx := range st.pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := idx[2*st.spanGroup], idx[2*st.spanGroup+1]
			if start < 0 || overlaps(spans, start, end) {
				continue
			}
			groups := submatches(text, idx)
			if st.accept != nil && !st.accept(groups) {
				continue
			}
			original := text[start:end]
			replacement := original
			if st.transform != nil {
				replacement = st.transform(groups)
			}
			spans = append(spans, Span{
				Start:       start,
				End:         end,
				Category:    st.category,
				Original:    original,
				Replacement: replacement,
				Candidate:   st.candidate,
			})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans
}

// Apply replaces every protected span with a unique placeholder and returns
// the working text plus the placeholder mapping. Placeholders are delimited
// by NUL bytes and carry a letters-only index, so no protection or conversion
// pattern can match into them. Restoration substitutes each placeholder with
// the span's Replacement (the normalized original).
func Apply(text string) (string, []Range) {
	spans := Spans(text)
	if len(spans) == 0 {
		return text, nil
	}

	var b strings.Builder
	ranges := make([]Range, 0, len(spans))
	last := 0
	for i, sp := range spans {
		placeholder := "\x00" + alphaIndex(i) + "\x00"
		b.WriteString(text[last:sp.Start])
		b.WriteString(placeholder)
		ranges = append(ranges, Range{Placeholder: placeholder, Original: sp.Replacement})
		last = sp.End
	}
	b.WriteString(text[last:])
	return b.String(), ranges
}

// Restore substitutes every placeholder back. Order does not matter because
// placeholders are unique literal strings.
func Restore(text string, ranges []Range) string {
	for _, r := range ranges {
		text = strings.ReplaceAll(text, r.Placeholder, r.Original)
	}
	return text
}

func overlaps(spans []Span, start, end int) bool {
	for _, sp := range spans {
		if start < sp.End && end > sp.Start {
			return true
		}
	}
	return false
}

func submatches(text string, idx []int) []string {
	groups := make([]string, len(idx)/2)
	for i := range groups {
		if idx[2*i] >= 0 {
			groups[i] = text[idx[2*i]:idx[2*i+1]]
		}
	}
	return groups
}

// alphaIndex encodes n using letters only; digits inside a placeholder would
// be fair game for the digit-hungry patterns that run after placement.
func alphaIndex(n int) string {
	if n == 0 {
		return "a"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('a' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
