package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SanitizeFileName makes name safe to use as a single path element while
// keeping non-ASCII letters. Separators and drive colons become dashes,
// wildcard and quoting characters and control characters are dropped, and
// leading or trailing dots are trimmed so "." and ".." collapse to "".
func SanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case strings.ContainsRune(`/\:*`, r):
			return '-'
		case strings.ContainsRune(`?"<>|`, r):
			return -1
		default:
			return r
		}
	}, norm.NFC.String(name))
	return strings.Trim(strings.TrimSpace(name), ".")
}

// foldAccents decomposes text and drops combining marks so "Café" folds to
// "Cafe".
func foldAccents(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// SanitizeToken converts a string to a lowercase ASCII token safe for use in
// file names. Accents are folded, digits and hyphens/underscores are kept,
// everything else becomes an underscore. Returns fallback for input that
// sanitizes to nothing.
func SanitizeToken(value, fallback string) string {
	value = foldAccents(strings.TrimSpace(value))
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return fallback
	}
	return out
}
