// Package safestr normalizes free-form text before it is persisted or placed
// on the wire: claves, names, emails, phone numbers and URLs. Normalization
// folds diacritics (Teléfono -> TELEFONO) so claves remain stable across
// peers that disagree on accents.
package safestr

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	emailRE    = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)
	telefonoRE = regexp.MustCompile(`^[0-9]{10}$`)
	urlRE      = regexp.MustCompile(`^(https?://)[0-9a-z-_]*(\.[0-9a-z-_]+)*(\.[a-z]+)+(:(\d+))?(/[0-9a-zA-Z%-_]*)*/?$`)

	nonAlnumRE = regexp.MustCompile(`[^a-zA-Z0-9]+`)
	multiWS    = regexp.MustCompile(`\s+`)

	// foldDiacritics decomposes to NFD and strips combining marks.
	foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// fold removes diacritics, returning s unchanged when transformation fails.
func fold(s string) string {
	out, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		return s
	}
	return out
}

// Clave normalizes a catalog clave: diacritics folded, non-alphanumerics
// collapsed to dashes, upper-cased and clipped to maxLen. Returns "" for
// blank input.
func Clave(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = nonAlnumRE.ReplaceAllString(fold(s), "-")
	s = strings.Trim(strings.ToUpper(s), "-")
	if maxLen > 0 && len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}

// Texto normalizes a human-readable string: trimmed, inner whitespace
// collapsed, diacritics preserved. Clipped to maxLen runes when maxLen > 0.
func Texto(s string, maxLen int) string {
	s = multiWS.ReplaceAllString(strings.TrimSpace(s), " ")
	if maxLen > 0 {
		r := []rune(s)
		if len(r) > maxLen {
			return string(r[:maxLen])
		}
	}
	return s
}

// Email lower-cases and validates an email address. Returns "" when the
// input is blank or invalid.
func Email(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || !emailRE.MatchString(s) {
		return ""
	}
	return s
}

// Telefono validates a 10-digit phone number after stripping separators.
// Returns "" when invalid.
func Telefono(s string) string {
	s = nonAlnumRE.ReplaceAllString(strings.TrimSpace(s), "")
	if !telefonoRE.MatchString(s) {
		return ""
	}
	return s
}

// URL validates an http(s) URL. Returns "" when invalid.
func URL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !urlRE.MatchString(strings.ToLower(s)) {
		return ""
	}
	return s
}
