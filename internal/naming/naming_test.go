package naming_test

import (
	"strings"
	"testing"

	"packmule/internal/naming"
)

func TestNormalizeStripsVersionSuffix(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing version", "Firefox 120.0.1", "Firefox"},
		{"dash separator", "MyApp-2.1", "MyApp"},
		{"dot separator", "MyApp.pkg", "MyApp"},
		{"hash prefix", strings.Repeat("a1b2c3d4", 8) + "--MyApp-2.1.dmg", "MyApp"},
		{"no match passes through", "Firefox", "Firefox"},
		{"multiword", "Microsoft Teams 1.6.00", "Microsoft Teams"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := naming.Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Firefox 120.0.1",
		"MyApp-2.1.dmg",
		"Microsoft Teams 1.6.00",
		"Plain",
		strings.Repeat("ab12cd34", 8) + "--Tool-9.9.pkg",
	}
	for _, in := range inputs {
		once := naming.Normalize(in)
		twice := naming.Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestDeriveDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/tmp/my-app_installer.pkg", "My App Installer"},
		{"/tmp/thing.dmg", "Thing"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := naming.DeriveDisplayName(tc.in); got != tc.want {
			t.Fatalf("DeriveDisplayName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
