// Package textutil provides string similarity and filename sanitization
// primitives for catalog matching.
//
// The similarity measure is the Gestalt pattern-matching ratio (the
// longest-matching-blocks algorithm): twice the number of matched characters
// divided by the combined length of both inputs, in [0, 1]. It is tolerant
// of small localized edits, which makes it a good fit for comparing
// installer filenames that differ only in version or build metadata.
package textutil
