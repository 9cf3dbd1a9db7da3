package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// ScratchDir hosts the per-run expansion workspace.
	ScratchDir string `toml:"scratch_dir"`
	// DurableDir receives packages copied out of disk images.
	DurableDir string `toml:"durable_dir"`
	LogDir     string `toml:"log_dir"`
	// HistoryDB is the publish ledger database path.
	HistoryDB string `toml:"history_db"`
}

// Catalog contains the remote catalog connection settings.
type Catalog struct {
	APIURL string `toml:"api_url"`
	// TokenName is looked up in the enabled keystores to obtain the bearer
	// token; the secret itself never lives in the config file.
	TokenName string `toml:"token_name"`
}

// TokenKeystore toggles the secret backends consulted for named tokens.
type TokenKeystore struct {
	Environment bool `toml:"environment"`
	Keychain    bool `toml:"keychain"`
}

// Slack contains notification configuration. The webhook URL is itself a
// named secret resolved through the keystore.
type Slack struct {
	Enabled     bool   `toml:"enabled"`
	WebhookName string `toml:"webhook_name"`
}

// Defaults contains publish behavior applied when flags and the package map
// are silent.
type Defaults struct {
	AutoCreate bool `toml:"auto_create"`
	// NewAppNaming names newly created entries; the literal APPNAME is
	// replaced with the derived product name.
	NewAppNaming            string `toml:"new_app_naming"`
	DryRun                  bool   `toml:"dry_run"`
	DynamicLookup           bool   `toml:"dynamic_lookup"`
	SelfServiceCategory     string `toml:"self_service_category"`
	TestSelfServiceCategory string `toml:"test_self_service_category"`
}

// Enforcement configures install enforcement for published entries.
type Enforcement struct {
	// Type is one of install_once, audit_enforce, self_service.
	Type string `toml:"type"`
	// TestDelayDays and ProdDelayDays postpone audit enforcement.
	TestDelayDays int `toml:"test_delay_days"`
	ProdDelayDays int `toml:"prod_delay_days"`
	// AuditScript is the enforcement script customized per upload.
	AuditScript string `toml:"audit_script"`
}

// PackageMap configures the optional identifier-to-name mapping.
type PackageMap struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Matcher tunes the similarity matcher. These are empirically tuned
// constants surfaced as configuration rather than literals.
type Matcher struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	UploadTokenLength   int     `toml:"upload_token_length"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for packmule.
//
// Configuration sections by subsystem:
//   - Paths: scratch/durable/log directories and the history database
//   - Catalog: remote catalog URL and token name
//   - TokenKeystore: secret backends for token lookup
//   - Slack: notification webhook settings
//   - Defaults: publish behavior when flags and mappings are silent
//   - Enforcement: install enforcement type, delays, audit script
//   - PackageMap: identifier-to-name mapping file
//   - Matcher: similarity threshold and upload token length
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Catalog       Catalog       `toml:"catalog"`
	TokenKeystore TokenKeystore `toml:"token_keystore"`
	Slack         Slack         `toml:"slack"`
	Defaults      Defaults      `toml:"defaults"`
	Enforcement   Enforcement   `toml:"enforcement"`
	PackageMap    PackageMap    `toml:"package_map"`
	Matcher       Matcher       `toml:"matcher"`
	Logging       Logging       `toml:"logging"`
}

// Enforcement values accepted by the catalog API.
const (
	EnforceContinuously  = "continuously_enforce"
	EnforceNone          = "no_enforcement"
	EnforceInstallOnce   = "install_once"
	enforcementAudit     = "audit_enforce"
	enforcementSelfServe = "self_service"
)

// APIEnforcement translates a configured enforcement type to its API value.
func APIEnforcement(configured string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(configured)) {
	case enforcementAudit:
		return EnforceContinuously, true
	case enforcementSelfServe:
		return EnforceNone, true
	case EnforceInstallOnce, "":
		return EnforceInstallOnce, true
	default:
		return "", false
	}
}

// DisplayEnforcement translates an API enforcement value back to the
// operator-facing config vocabulary.
func DisplayEnforcement(api string) string {
	switch api {
	case EnforceContinuously:
		return enforcementAudit
	case EnforceNone:
		return enforcementSelfServe
	default:
		return api
	}
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/packmule/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("packmule.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories packmule needs at runtime.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.ScratchDir,
		c.Paths.DurableDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.HistoryDB),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// NewAppName applies the configured naming template to a derived product
// name.
func (c *Config) NewAppName(derivedName string) string {
	template := c.Defaults.NewAppNaming
	if template == "" {
		template = defaultNewAppNaming
	}
	return strings.ReplaceAll(template, "APPNAME", derivedName)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
