package match_test

import (
	"errors"
	"testing"

	"packmule/internal/artifact"
	"packmule/internal/catalog"
	"packmule/internal/match"
)

func entry(id, name, fileKey, updatedAt, fileUpdated string) catalog.Entry {
	return catalog.Entry{
		ID:          id,
		Name:        name,
		FileKey:     "prefix/" + fileKey,
		UpdatedAt:   updatedAt,
		FileUpdated: fileUpdated,
	}
}

func TestMatchEndToEnd(t *testing.T) {
	entries := []catalog.Entry{
		entry("old", "MyApp", "MyApp-2.0.0_z9y8x7w6.pkg", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"),
		entry("new", "MyApp", "MyApp-2.0.1_q1w2e3r4.pkg", "2024-02-01T00:00:00Z", "2024-02-01T00:00:00Z"),
	}
	matcher := match.New(match.Options{}, nil)

	got, err := matcher.Match("MyApp-2.0.1_a1b2c3d4.pkg", entries, nil)
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if got.ID != "new" {
		t.Fatalf("expected highest version selected, got %+v", got)
	}
}

func TestMatchThresholdBoundary(t *testing.T) {
	matcher := match.New(match.Options{}, nil)

	// 17 of 20 characters match: ratio is exactly 0.85 and must be included.
	included := []catalog.Entry{
		entry("a", "App", "aaaaaaaaaaaaaXXX.pkg", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"),
	}
	if _, err := matcher.Match("aaaaaaaaaaaaaYYY.pkg", included, nil); err != nil {
		t.Fatalf("expected ratio 0.85 to be included, got %v", err)
	}

	// 16 of 20 characters match: ratio 0.80 falls below the threshold.
	excluded := []catalog.Entry{
		entry("a", "App", "aaaaaaaaaaaaXXXX.pkg", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"),
	}
	if _, err := matcher.Match("aaaaaaaaaaaaYYYY.pkg", excluded, nil); !errors.Is(err, artifact.ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch below threshold, got %v", err)
	}
}

func TestMatchStripsUploadTokens(t *testing.T) {
	entries := []catalog.Entry{
		entry("a", "MyApp", "MyApp-2.0.1_z9y8x7w6.pkg", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"),
	}
	matcher := match.New(match.Options{}, nil)

	// Names differ only in their random upload token; after stripping they
	// compare as identical.
	got, err := matcher.Match("MyApp-2.0.1_a1b2c3d4.pkg", entries, nil)
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if got.ID != "a" {
		t.Fatalf("unexpected match: %+v", got)
	}
}

func TestMatchTieBreakPrefersOldestUpload(t *testing.T) {
	entries := []catalog.Entry{
		entry("later", "MyApp", "MyApp-2.0.1_aaaa1111.pkg", "2024-03-01T00:00:00Z", "2024-03-01T00:00:00Z"),
		entry("earlier", "MyApp", "MyApp 2.0.1_bbbb2222.pkg", "2024-01-15T00:00:00Z", "2024-01-15T00:00:00.123456Z"),
	}
	matcher := match.New(match.Options{}, nil)

	got, err := matcher.Match("MyApp-2.0.1_c3c3c3c3.pkg", entries, nil)
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if got.ID != "earlier" {
		t.Fatalf("expected oldest upload to win the tie, got %+v", got)
	}
}

func TestMatchTieBreakFallsBackToModifiedTime(t *testing.T) {
	entries := []catalog.Entry{
		entry("modified-later", "MyApp", "MyApp-2.0.1_aaaa1111.pkg", "2024-03-01T00:00:00Z", "2024-01-01T00:00:00Z"),
		entry("modified-earlier", "MyApp", "MyApp 2.0.1_bbbb2222.pkg", "2024-02-01T00:00:00Z", "2024-01-01T00:00:00Z"),
	}
	matcher := match.New(match.Options{}, nil)

	got, err := matcher.Match("MyApp-2.0.1_c3c3c3c3.pkg", entries, nil)
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if got.ID != "modified-earlier" {
		t.Fatalf("expected earlier modification to win the tie, got %+v", got)
	}
}

func TestMatchIgnoresNonPackageEntries(t *testing.T) {
	entries := []catalog.Entry{
		entry("dmg", "MyApp", "MyApp-2.0.1_a1b2c3d4.dmg", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"),
	}
	matcher := match.New(match.Options{}, nil)

	if _, err := matcher.Match("MyApp-2.0.1_c3c3c3c3.pkg", entries, nil); !errors.Is(err, artifact.ErrNoMatch) {
		t.Fatalf("expected image-only entries to be unmatchable, got %v", err)
	}
}

func TestMatchHintsRestrictCandidates(t *testing.T) {
	entries := []catalog.Entry{
		entry("wrong", "MyApp Beta", "MyApp-2.0.2_aaaa1111.pkg", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"),
		entry("hinted", "MyApp", "MyApp-2.0.1_bbbb2222.pkg", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"),
	}
	matcher := match.New(match.Options{}, nil)

	// Without the hint the higher 2.0.2 version would win; the hint pins the
	// match to the known record.
	got, err := matcher.Match("MyApp-2.0.1_c3c3c3c3.pkg", entries, entries[1:])
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if got.ID != "hinted" {
		t.Fatalf("expected hinted record selected, got %+v", got)
	}
}

func TestMatchCustomThreshold(t *testing.T) {
	entries := []catalog.Entry{
		entry("a", "App", "aaaaaaaaaaaaXXXX.pkg", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"),
	}
	matcher := match.New(match.Options{Threshold: 0.75}, nil)

	if _, err := matcher.Match("aaaaaaaaaaaaYYYY.pkg", entries, nil); err != nil {
		t.Fatalf("expected lowered threshold to include candidate, got %v", err)
	}
}
