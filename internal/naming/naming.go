// Package naming derives clean, comparison-ready product names from raw
// installer and volume names.
package naming

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// namePattern strips an optional 64-char hex content-hash prefix, then
// captures the shortest run of word/whitespace characters that is followed
// by either a version-looking token (whitespace then digits.digits) or a
// literal '.'/'-'. The trailing context is matched but discarded.
var namePattern = regexp.MustCompile(`(?:[a-f0-9]{64}--)?([\w\s]+?)(?:\s+\d+\.\d+|[.-])`)

// Normalize strips version numbers and noise tokens from a raw installer or
// volume name. Names with nothing to strip pass through unchanged, which
// makes the function idempotent.
func Normalize(raw string) string {
	m := namePattern.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	return m[1]
}

// DeriveDisplayName produces a human-facing title from an artifact path when
// no name could be extracted from container or bundle metadata. Separators
// become spaces and the result is title-cased.
func DeriveDisplayName(path string) string {
	if path == "" {
		return ""
	}
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return ""
	}
	return cases.Title(language.Und).String(title)
}
