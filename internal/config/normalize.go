package config

import (
	"os"
	"strings"
)

// normalize expands path fields, applies environment fallbacks, and trims
// string settings so validation operates on canonical values.
func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCatalog()
	c.normalizeKeystore()
	c.normalizeStrings()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []*string{
		&c.Paths.ScratchDir,
		&c.Paths.DurableDir,
		&c.Paths.LogDir,
		&c.Paths.HistoryDB,
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field))
		if err != nil {
			return err
		}
		*field = expanded
	}
	if c.PackageMap.Path != "" {
		expanded, err := expandPath(strings.TrimSpace(c.PackageMap.Path))
		if err != nil {
			return err
		}
		c.PackageMap.Path = expanded
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	c.Catalog.APIURL = strings.TrimSpace(c.Catalog.APIURL)
	if c.Catalog.APIURL == "" {
		c.Catalog.APIURL = strings.TrimSpace(os.Getenv("CATALOG_API_URL"))
	}
	c.Catalog.TokenName = strings.TrimSpace(c.Catalog.TokenName)
}

// normalizeKeystore honours ENV_KEYSTORE as an override that forces the
// environment backend on, for CI runs without a login keychain.
func (c *Config) normalizeKeystore() {
	if strings.TrimSpace(os.Getenv("ENV_KEYSTORE")) != "" {
		c.TokenKeystore.Environment = true
	}
}

func (c *Config) normalizeStrings() {
	c.Enforcement.Type = strings.ToLower(strings.TrimSpace(c.Enforcement.Type))
	c.Enforcement.AuditScript = strings.TrimSpace(c.Enforcement.AuditScript)
	c.Slack.WebhookName = strings.TrimSpace(c.Slack.WebhookName)
	c.Defaults.NewAppNaming = strings.TrimSpace(c.Defaults.NewAppNaming)
	c.Defaults.SelfServiceCategory = strings.TrimSpace(c.Defaults.SelfServiceCategory)
	c.Defaults.TestSelfServiceCategory = strings.TrimSpace(c.Defaults.TestSelfServiceCategory)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}
