package protect

import (
	"strings"

	"github.com/raaihank/lyricsmith/internal/numwords"
)

// hundredIdiomWords rewrites "35 hundred" as "thirty-five hundred". The idiom
// is converted in place rather than shielded, so the span carries the word
// form as its replacement.
func hundredIdiomWords(groups []string) string {
	words, err := numwords.ToWords(atoiSafe(groups[1]))
	if err != nil {
		return groups[0]
	}
	return words + " hundred"
}

// normalizeClockTime canonicalizes "5:00 pm" style times before protection:
// the meridiem gains its dots and zero minutes are dropped.
func normalizeClockTime(groups []string) string {
	hour, minutes, meridiem := groups[1], groups[2], groups[3]
	if meridiem == "" {
		return groups[0]
	}
	mer := strings.ToLower(meridiem) + ".m."
	if minutes == "00" {
		return hour + " " + mer
	}
	return hour + ":" + minutes + " " + mer
}

// normalizeBareMeridiem canonicalizes "9am" / "9 PM" into "9 a.m." / "9 p.m.".
func normalizeBareMeridiem(groups []string) string {
	return groups[1] + " " + strings.ToLower(groups[2]) + ".m."
}
