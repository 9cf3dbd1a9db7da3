package textutil_test

import (
	"math"
	"testing"

	"packmule/internal/textutil"
)

func TestRatioIdenticalStrings(t *testing.T) {
	if got := textutil.Ratio("MyApp-2.0.1.pkg", "MyApp-2.0.1.pkg"); got != 1.0 {
		t.Fatalf("expected 1.0 for identical strings, got %v", got)
	}
}

func TestRatioDisjointStrings(t *testing.T) {
	if got := textutil.Ratio("abc", "xyz"); got != 0 {
		t.Fatalf("expected 0 for disjoint strings, got %v", got)
	}
}

func TestRatioEmptyInputs(t *testing.T) {
	if got := textutil.Ratio("", ""); got != 1.0 {
		t.Fatalf("expected 1.0 for two empty strings, got %v", got)
	}
	if got := textutil.Ratio("abc", ""); got != 0 {
		t.Fatalf("expected 0 against empty string, got %v", got)
	}
}

func TestRatioKnownValue(t *testing.T) {
	// 17 matched characters over 40 total: exactly 0.85.
	a := "aaaaaaaaaaaaaaaaabbb"
	b := "aaaaaaaaaaaaaaaaaccc"
	got := textutil.Ratio(a, b)
	if math.Abs(got-0.85) > 1e-9 {
		t.Fatalf("expected ratio 0.85, got %v", got)
	}
}

func TestRatioSymmetricEnough(t *testing.T) {
	a := "Firefox 128.0.pkg"
	b := "Firefox 129.0.1.pkg"
	ab := textutil.Ratio(a, b)
	if ab < 0.85 {
		t.Fatalf("expected near-identical installer names to score above threshold, got %v", ab)
	}
}

func TestSanitizeVersionPipeline(t *testing.T) {
	token := textutil.UploadTokenPattern(8, ".pkg")
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "MyApp-2.0.1.pkg", "2.0.1"},
		{"with token", "MyApp-2.0.1_a1b2c3d4.pkg", "2.0.1"},
		{"spaces", "My App 3.1.4.pkg", "3.1.4"},
		{"four segments", "Tool-120.0.1.4567.pkg", "120.0.1.4567"},
		{"no digits", "Installer.pkg", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.SanitizeVersion(tc.in, token); got != tc.want {
				t.Fatalf("SanitizeVersion(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestStripUploadTokenIdenticalAfterStripping(t *testing.T) {
	token := textutil.UploadTokenPattern(8, ".pkg")
	a := textutil.StripUploadToken("MyApp-2.0.0_z9y8x7w6.pkg", token)
	b := textutil.StripUploadToken("MyApp-2.0.0_q1w2e3r4.pkg", token)
	if a != b {
		t.Fatalf("expected identical names after token stripping: %q vs %q", a, b)
	}
	if got := textutil.Ratio(a, b); got != 1.0 {
		t.Fatalf("expected ratio 1.0 after stripping, got %v", got)
	}
}
