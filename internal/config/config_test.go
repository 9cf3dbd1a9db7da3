package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
[catalog]
api_url = "https://tenant.api.example.com"
token_name = "my-token"
`

func TestLoadMinimalConfig(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Catalog.APIURL != "https://tenant.api.example.com" {
		t.Fatalf("unexpected api_url: %q", cfg.Catalog.APIURL)
	}
	if cfg.Matcher.SimilarityThreshold != 0.85 {
		t.Fatalf("expected default threshold, got %v", cfg.Matcher.SimilarityThreshold)
	}
	if cfg.Enforcement.Type != "install_once" {
		t.Fatalf("expected default enforcement, got %q", cfg.Enforcement.Type)
	}
	if strings.HasPrefix(cfg.Paths.ScratchDir, "~") {
		t.Fatalf("expected expanded scratch dir, got %q", cfg.Paths.ScratchDir)
	}
}

func TestLoadAPIURLEnvironmentFallback(t *testing.T) {
	t.Setenv("CATALOG_API_URL", "https://fallback.example.com")
	path := writeConfig(t, `
[catalog]
token_name = "my-token"
`)

	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Catalog.APIURL != "https://fallback.example.com" {
		t.Fatalf("expected environment fallback, got %q", cfg.Catalog.APIURL)
	}
}

func TestLoadMissingAPIURL(t *testing.T) {
	t.Setenv("CATALOG_API_URL", "")
	path := writeConfig(t, `
[catalog]
token_name = "my-token"
`)

	_, _, _, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for missing api_url")
	}
	if !strings.Contains(err.Error(), "catalog.api_url") {
		t.Fatalf("expected api_url in error, got: %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		want     string
	}{
		{
			name: "threshold out of range",
			contents: minimalConfig + `
[matcher]
similarity_threshold = 1.5
`,
			want: "similarity_threshold",
		},
		{
			name: "unknown enforcement",
			contents: minimalConfig + `
[enforcement]
type = "block"
`,
			want: "enforcement.type",
		},
		{
			name: "audit without script",
			contents: minimalConfig + `
[enforcement]
type = "audit_enforce"
audit_script = ""
`,
			want: "audit_script",
		},
		{
			name: "map enabled without path",
			contents: minimalConfig + `
[package_map]
enabled = true
`,
			want: "package_map.path",
		},
		{
			name: "slack enabled without webhook",
			contents: minimalConfig + `
[slack]
enabled = true
`,
			want: "webhook_name",
		},
		{
			name: "no keystore backend",
			contents: minimalConfig + `
[token_keystore]
environment = false
keychain = false
`,
			want: "token_keystore",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV_KEYSTORE", "")
			path := writeConfig(t, tt.contents)
			_, _, _, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in error, got: %v", tt.want, err)
			}
		})
	}
}

func TestEnvKeystoreOverride(t *testing.T) {
	t.Setenv("ENV_KEYSTORE", "1")
	path := writeConfig(t, minimalConfig+`
[token_keystore]
environment = false
keychain = false
`)

	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !cfg.TokenKeystore.Environment {
		t.Fatal("expected ENV_KEYSTORE to force the environment backend on")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CATALOG_API_URL", "https://fallback.example.com")
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Defaults.NewAppNaming != "APPNAME (packmule)" {
		t.Fatalf("unexpected naming template: %q", cfg.Defaults.NewAppNaming)
	}
}

func TestAPIEnforcementTranslation(t *testing.T) {
	tests := []struct {
		configured string
		want       string
		ok         bool
	}{
		{"install_once", EnforceInstallOnce, true},
		{"audit_enforce", EnforceContinuously, true},
		{"self_service", EnforceNone, true},
		{"", EnforceInstallOnce, true},
		{"Audit_Enforce", EnforceContinuously, true},
		{"block", "", false},
	}
	for _, tt := range tests {
		got, ok := APIEnforcement(tt.configured)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("APIEnforcement(%q) = %q, %v; want %q, %v", tt.configured, got, ok, tt.want, tt.ok)
		}
	}

	if DisplayEnforcement(EnforceContinuously) != "audit_enforce" {
		t.Fatal("expected continuously_enforce to display as audit_enforce")
	}
	if DisplayEnforcement(EnforceNone) != "self_service" {
		t.Fatal("expected no_enforcement to display as self_service")
	}
}

func TestNewAppName(t *testing.T) {
	cfg := Default()
	if got := cfg.NewAppName("MyApp"); got != "MyApp (packmule)" {
		t.Fatalf("unexpected new app name: %q", got)
	}

	cfg.Defaults.NewAppNaming = "Managed APPNAME"
	if got := cfg.NewAppName("MyApp"); got != "Managed MyApp" {
		t.Fatalf("unexpected templated name: %q", got)
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("CATALOG_API_URL", "https://fallback.example.com")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Matcher.UploadTokenLength != 8 {
		t.Fatalf("unexpected token length: %d", cfg.Matcher.UploadTokenLength)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfg.Paths.DurableDir = filepath.Join(base, "artifacts")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.HistoryDB = filepath.Join(base, "db", "history.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.ScratchDir, cfg.Paths.DurableDir, cfg.Paths.LogDir, filepath.Join(base, "db")} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", dir)
		}
	}
}
