package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"packmule/internal/catalog"
	"packmule/internal/command"
	"packmule/internal/config"
	"packmule/internal/history"
	"packmule/internal/keystore"
	"packmule/internal/logging"
	"packmule/internal/notify"
	"packmule/internal/pkgmap"
	"packmule/internal/publish"
	"packmule/internal/resolve"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	log        *slog.Logger
	logErr     error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logErr = err
			return
		}
		c.log, c.logErr = logging.New(logging.Options{
			Level:   cfg.Logging.Level,
			Format:  cfg.Logging.Format,
			LogFile: filepath.Join(cfg.Paths.LogDir, "packmule.log"),
		})
	})
	return c.log, c.logErr
}

func (c *commandContext) secrets(cfg *config.Config, run command.Runner, logger *slog.Logger) *keystore.Store {
	return keystore.New(cfg.TokenKeystore.Environment, cfg.TokenKeystore.Keychain, run, logger)
}

// catalogClient resolves the API token and builds an authenticated client.
func (c *commandContext) catalogClient(ctx context.Context) (*catalog.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	run := command.New(logger)
	token, err := c.secrets(cfg, run, logger).Retrieve(ctx, cfg.Catalog.TokenName)
	if err != nil {
		return nil, err
	}
	return catalog.NewClient(cfg.Catalog.APIURL, token, logger)
}

func (c *commandContext) resolver() (*resolve.Resolver, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	return resolve.New(command.New(logger), cfg.Paths.ScratchDir, cfg.Paths.DurableDir, logger), nil
}

func (c *commandContext) packages() (pkgmap.Map, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.PackageMap.Enabled {
		return nil, nil
	}
	return pkgmap.Load(cfg.PackageMap.Path)
}

// publishService wires the full publish pipeline. The returned cleanup
// closes the history ledger.
func (c *commandContext) publishService(ctx context.Context) (*publish.Service, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, nil, err
	}
	run := command.New(logger)
	secrets := c.secrets(cfg, run, logger)

	token, err := secrets.Retrieve(ctx, cfg.Catalog.TokenName)
	if err != nil {
		return nil, nil, err
	}
	client, err := catalog.NewClient(cfg.Catalog.APIURL, token, logger)
	if err != nil {
		return nil, nil, err
	}

	notifier := notify.New("", logger)
	if cfg.Slack.Enabled {
		webhook, err := secrets.Retrieve(ctx, cfg.Slack.WebhookName)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve slack webhook: %w", err)
		}
		notifier = notify.New(webhook, logger)
	}

	packages, err := c.packages()
	if err != nil {
		return nil, nil, err
	}

	ledger, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		return nil, nil, err
	}

	resolver := resolve.New(run, cfg.Paths.ScratchDir, cfg.Paths.DurableDir, logger)
	service := publish.New(cfg, client, resolver, packages, notifier, ledger, logger)
	return service, func() { _ = ledger.Close() }, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
