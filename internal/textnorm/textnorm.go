// Package textnorm holds the single normalization used to compare user text
// against control words and names: diacritics stripped, lower-cased,
// whitespace collapsed.
package textnorm

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns s without diacritics, lower-cased, with runs of
// whitespace collapsed to one space.
func Normalize(s string) string {
	// transform chains carry state, so one is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// Equal compares a and b after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// OneOf reports whether s normalizes to any of words.
func OneOf(s string, words ...string) bool {
	n := Normalize(s)
	for _, w := range words {
		if n == Normalize(w) {
			return true
		}
	}
	return false
}

// IsCancel recognizes the cancel control token in any supported locale.
func IsCancel(s string) bool {
	return OneOf(s, "cancelar", "cancel")
}

// IsConfirm recognizes the confirm control token in any supported locale.
func IsConfirm(s string) bool {
	return OneOf(s, "confirmar", "confirm")
}

// Index parses a 1-based selection against a list of n options and returns
// the 0-based index.
func Index(s string, n int) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ".")))
	if err != nil || v < 1 || v > n {
		return 0, false
	}
	return v - 1, true
}

// Match selects a name by normalized equality first, then by a unique
// partial match in either direction. Ambiguous partial matches select none.
func Match(input string, names []string) (int, bool) {
	needle := Normalize(input)
	if needle == "" {
		return 0, false
	}
	for i, name := range names {
		if Normalize(name) == needle {
			return i, true
		}
	}
	found := -1
	for i, name := range names {
		hay := Normalize(name)
		if hay == "" {
			continue
		}
		if strings.Contains(hay, needle) || strings.Contains(needle, hay) {
			if found >= 0 {
				return 0, false
			}
			found = i
		}
	}
	if found < 0 {
		return 0, false
	}
	return found, true
}

// Select resolves a reply against a candidate list: a 1-based index first,
// then Match.
func Select(input string, names []string) (int, bool) {
	if i, ok := Index(input, len(names)); ok {
		return i, true
	}
	return Match(input, names)
}
