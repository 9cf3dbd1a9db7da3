package pkgmap_test

import (
	"os"
	"path/filepath"
	"testing"

	"packmule/internal/pkgmap"
)

func TestLoadAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package_map.json")
	content := `{
		"com.example.myapp": {
			"prod_name": "MyApp",
			"test_name": "MyApp (Test)",
			"ss_category": "Productivity",
			"test_category": "Testing"
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := pkgmap.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	names, ok := m.Lookup("com.example.myapp")
	if !ok {
		t.Fatal("expected identifier to be mapped")
	}
	if names.ProdName != "MyApp" || names.TestName != "MyApp (Test)" {
		t.Fatalf("unexpected names: %+v", names)
	}
	if names.SelfServiceCategory != "Productivity" {
		t.Fatalf("unexpected category: %q", names.SelfServiceCategory)
	}
	if m.Contains("com.example.other") {
		t.Fatal("expected unmapped identifier to be absent")
	}
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package_map.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := pkgmap.Load(path); err == nil {
		t.Fatal("expected error for malformed map")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := pkgmap.Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing map file")
	}
}
