package testsupport

import (
	"path/filepath"
	"testing"

	"packmule/internal/config"
)

// NewConfig returns a usable configuration rooted in a per-test temp
// directory, with the runtime directories already created.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfg.Paths.DurableDir = filepath.Join(base, "artifacts")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.HistoryDB = filepath.Join(base, "history.db")
	cfg.Catalog.APIURL = "https://tenant.api.example.com"
	cfg.Catalog.TokenName = "test-token"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("prepare config directories: %v", err)
	}
	return &cfg
}
