package brackets

import (
	"strings"
	"testing"
)

func TestAnnotate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"balanced", "(hello) [world]", "(hello) [world]"},
		{"unmatched open paren", "(hello", Marker + "(" + Marker + "hello"},
		{"unmatched close paren", "hello)", "hello" + Marker + ")" + Marker},
		{"unmatched open square", "[verse", Marker + "[" + Marker + "verse"},
		{"no brackets", "plain text", "plain text"},
		{"nested balanced", "([ok])", "([ok])"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Annotate(tc.in); got != tc.want {
				t.Errorf("Annotate(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

// Paren and square bracket stacks are independent: "[)" is two unmatched
// brackets, not a pair.
func TestAnnotate_IndependentStacks(t *testing.T) {
	got := Annotate("[)")
	if strings.Count(got, Marker) != 4 {
		t.Errorf("Expected both brackets flagged, got %q", got)
	}
}

func TestAnnotate_MultipleDescendingInsertion(t *testing.T) {
	got := Annotate("a( b( c)")
	// The ")" closes the most recent "(", leaving the first one open.
	want := "a" + Marker + "(" + Marker + " b( c)"
	if got != want {
		t.Errorf("Annotate = %q, want %q", got, want)
	}
}

func TestAnnotate_Idempotent(t *testing.T) {
	inputs := []string{"(hello", "hello)", "[a) b]", "((", "]]"}
	for _, in := range inputs {
		once := Annotate(in)
		twice := Annotate(once)
		if twice != once {
			t.Errorf("Annotate not idempotent on %q: %q != %q", in, twice, once)
		}
	}
}
