package numwords

import (
	"fmt"
	"strings"
)

var wordValues = buildWordValues()

func buildWordValues() map[string]int {
	m := make(map[string]int, len(ones)+len(tens))
	for i, w := range ones {
		m[w] = i
	}
	for v, w := range tens {
		m[w] = v
	}
	return m
}

// Parse converts a word form produced by ToWords back into its integer value.
// It understands the same ones/tens tables, the "hundred"/"thousand" scale
// words, and the hundreds shorthand ("thirty-five hundred" -> 3500).
func Parse(words string) (int, error) {
	fields := strings.Fields(strings.ReplaceAll(strings.ToLower(words), "-", " "))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty number phrase")
	}

	total, current := 0, 0
	for _, w := range fields {
		switch w {
		case "hundred":
			if current == 0 {
				return 0, fmt.Errorf("dangling scale word %q", w)
			}
			current *= 100
		case "thousand":
			if current == 0 {
				return 0, fmt.Errorf("dangling scale word %q", w)
			}
			total += current * 1000
			current = 0
		default:
			v, ok := wordValues[w]
			if !ok {
				return 0, fmt.Errorf("unknown number word %q", w)
			}
			current += v
		}
	}
	return total + current, nil
}
