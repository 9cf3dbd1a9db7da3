package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for invalid or contradictory values.
func (c *Config) Validate() error {
	var problems []string

	if c.Catalog.APIURL == "" {
		problems = append(problems, "catalog.api_url is required (or set CATALOG_API_URL)")
	}
	if c.Catalog.TokenName == "" {
		problems = append(problems, "catalog.token_name is required")
	}
	if !c.TokenKeystore.Environment && !c.TokenKeystore.Keychain {
		problems = append(problems, "token_keystore must enable at least one backend")
	}

	if c.Matcher.SimilarityThreshold <= 0 || c.Matcher.SimilarityThreshold > 1 {
		problems = append(problems, fmt.Sprintf("matcher.similarity_threshold must be in (0, 1], got %v", c.Matcher.SimilarityThreshold))
	}
	if c.Matcher.UploadTokenLength <= 0 {
		problems = append(problems, fmt.Sprintf("matcher.upload_token_length must be positive, got %d", c.Matcher.UploadTokenLength))
	}

	if _, ok := APIEnforcement(c.Enforcement.Type); !ok {
		problems = append(problems, fmt.Sprintf("enforcement.type must be install_once, audit_enforce, or self_service, got %q", c.Enforcement.Type))
	}
	if c.Enforcement.Type == enforcementAudit && c.Enforcement.AuditScript == "" {
		problems = append(problems, "enforcement.audit_script is required when enforcement.type is audit_enforce")
	}
	if c.Enforcement.TestDelayDays < 0 || c.Enforcement.ProdDelayDays < 0 {
		problems = append(problems, "enforcement delay days must not be negative")
	}

	if c.PackageMap.Enabled && c.PackageMap.Path == "" {
		problems = append(problems, "package_map.path is required when package_map.enabled is true")
	}
	if c.Slack.Enabled && c.Slack.WebhookName == "" {
		problems = append(problems, "slack.webhook_name is required when slack.enabled is true")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
