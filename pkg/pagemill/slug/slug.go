// Package slug normalizes titles into URL-safe identifiers and generates
// opaque unique record IDs.
package slug

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ł does not decompose under NFD, so it gets an explicit mapping before the
// generic diacritics fold.
var asciiFold = strings.NewReplacer("ł", "l", "Ł", "l")

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Make converts a title into a lowercase URL-safe slug: diacritics folded to
// ASCII, everything outside [a-z0-9 -] dropped, whitespace runs collapsed to
// single dashes.
func Make(title string) string {
	s := asciiFold.Replace(strings.ToLower(title))
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	s = strings.Join(strings.Fields(b.String()), "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}

// Unique slugifies title and, if the result is taken, appends -1, -2, ... until
// an unused slug is found.
func Unique(title string, taken map[string]bool) string {
	base := Make(title)
	s := base
	for counter := 1; taken[s]; counter++ {
		s = base + "-" + strconv.Itoa(counter)
	}
	return s
}

// NewID returns an opaque unique record ID.
func NewID() string {
	return ulid.Make().String()
}
