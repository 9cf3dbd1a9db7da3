package artifact

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the resolution pipeline. Callers classify failures
// with errors.Is rather than string matching.
var (
	ErrUnsupportedContainer = errors.New("unsupported container")
	ErrMountFailure         = errors.New("mount failure")
	ErrExpansionFailure     = errors.New("expansion failure")
	ErrNoIdentityMetadata   = errors.New("no identity metadata")
	ErrIncompleteIdentity   = errors.New("incomplete identity")
	ErrNoMatch              = errors.New("no catalog match")
	ErrCleanupFailure       = errors.New("cleanup failure")
)

// Wrap builds an error message that names the artifact and operation while
// tagging it with the provided sentinel for later classification.
func Wrap(marker error, basename, operation, message string, err error) error {
	detail := buildDetail(basename, operation, message)
	if marker == nil {
		return fmt.Errorf("%s: %w", detail, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(basename, operation, message string) string {
	parts := make([]string, 0, 3)
	if basename = strings.TrimSpace(basename); basename != "" {
		parts = append(parts, basename)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "artifact failure"
	}
	return strings.Join(parts, ": ")
}
