// Package numwords converts non-negative integers into the English word
// forms used in written lyrics, including the hundreds shorthand and plural
// decade forms.
package numwords

import (
	"fmt"
	"strings"
)

// MaxConvertible is the largest value ToWords accepts.
const MaxConvertible = 999999

var ones = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight",
	"nine", "ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen",
	"sixteen", "seventeen", "eighteen", "nineteen",
}

var tens = map[int]string{
	20: "twenty", 30: "thirty", 40: "forty", 50: "fifty",
	60: "sixty", 70: "seventy", 80: "eighty", 90: "ninety",
}

// ToWords converts n into English words. Compound tens are hyphenated
// ("twenty-five") and scale words are space-separated ("three hundred").
//
// Exact multiples of 100 between 1,000 and 10,000 that are not whole
// thousands use the spoken shorthand: 3500 becomes "thirty-five hundred",
// never "three thousand five hundred".
func ToWords(n int) (string, error) {
	if n < 0 || n > MaxConvertible {
		return "", fmt.Errorf("number out of convertible range: %d", n)
	}
	return toWords(n), nil
}

func toWords(n int) string {
	switch {
	case n < 20:
		return ones[n]
	case n < 100:
		if n%10 == 0 {
			return tens[n]
		}
		return tens[n/10*10] + "-" + ones[n%10]
	case n < 1000:
		if n%100 == 0 {
			return toWords(n/100) + " hundred"
		}
		return toWords(n/100) + " hundred " + toWords(n%100)
	case n < 10000 && n%100 == 0 && n%1000 != 0:
		// Spoken shorthand: "fifteen hundred", "thirty-five hundred".
		return toWords(n/100) + " hundred"
	default:
		out := toWords(n/1000) + " thousand"
		if rem := n % 1000; rem != 0 {
			out += " " + toWords(rem)
		}
		return out
	}
}

// ToPluralWords converts a plural number like 20 (from "20s") into its plural
// word form ("twenties"). Round tens swap the trailing "y" for "ies", words
// ending in "x" take "es", everything else takes "s". Exact hundreds and
// thousands drop the leading "one" ("100s" -> "hundreds").
func ToPluralWords(n int) (string, error) {
	words, err := ToWords(n)
	if err != nil {
		return "", err
	}
	if n == 100 || n == 1000 {
		words = strings.TrimPrefix(words, "one ")
	}
	return pluralizeLastWord(words), nil
}

func pluralizeLastWord(words string) string {
	idx := strings.LastIndexAny(words, " -")
	head, last := "", words
	if idx >= 0 {
		head, last = words[:idx+1], words[idx+1:]
	}
	switch {
	case strings.HasSuffix(last, "y"):
		last = last[:len(last)-1] + "ies"
	case strings.HasSuffix(last, "x"):
		last += "es"
	default:
		last += "s"
	}
	return head + last
}
