package utils

import (
	"html"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// invalidFileNameChars matches the characters Windows refuses in file names.
// Legacy library folders were produced on Windows, so names are cleaned
// against that set regardless of the host OS.
const invalidFileNameChars = "\"<>|:*?\\/"

// SanitizeFileName strips invalid characters, removes diacritics and
// literal percent signs, and finally decodes HTML entities. The order is
// significant: existing library names were produced by exactly this sequence.
func SanitizeFileName(name string) string {
	stripped := strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(invalidFileNameChars, r) {
			return -1
		}
		return r
	}, name)

	decomposed := norm.NFD.String(stripped)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r == '%' || unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	return html.UnescapeString(norm.NFC.String(b.String()))
}
