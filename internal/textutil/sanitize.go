package textutil

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	nonVersionPattern = regexp.MustCompile(`[^0-9.]`)
	dotRunPattern     = regexp.MustCompile(`\.{2,}`)
)

// UploadTokenPattern builds a pattern matching the randomized token segment
// appended to stored filenames at upload time, immediately preceding the
// given extension: "_a1b2c3d4" in "App-1.0_a1b2c3d4.pkg" for length 8.
// The extension is captured so replacement with "$1" strips only the token.
func UploadTokenPattern(length int, ext string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`_\w{%d}(%s)`, length, regexp.QuoteMeta(ext)))
}

// StripUploadToken removes the randomized upload token from name, keeping
// the extension intact.
func StripUploadToken(name string, token *regexp.Regexp) string {
	return token.ReplaceAllString(name, "$1")
}

// SanitizeVersion reduces a stored filename to a version-like string by
// applying, in fixed order: token removal, space-to-dot replacement,
// removal of everything but digits and dots, collapse of dot runs, and
// trimming of edge dots. The order is load-bearing; do not reorder.
func SanitizeVersion(name string, token *regexp.Regexp) string {
	s := StripUploadToken(name, token)
	s = strings.ReplaceAll(s, " ", ".")
	s = nonVersionPattern.ReplaceAllString(s, "")
	s = dotRunPattern.ReplaceAllString(s, ".")
	s = strings.Trim(s, ".")
	return s
}
