package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"packmule/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigShowCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set catalog.api_url (or export CATALOG_API_URL) before publishing.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "path", "p", "", "Configuration file to validate")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path:        %s (exists: %s)\n", path, yesNo(exists))
			fmt.Fprintf(out, "Catalog API:        %s\n", cfg.Catalog.APIURL)
			fmt.Fprintf(out, "Token name:         %s\n", cfg.Catalog.TokenName)
			fmt.Fprintf(out, "Keystores:          environment=%s keychain=%s\n",
				yesNo(cfg.TokenKeystore.Environment), yesNo(cfg.TokenKeystore.Keychain))
			fmt.Fprintf(out, "Scratch dir:        %s\n", cfg.Paths.ScratchDir)
			fmt.Fprintf(out, "Durable dir:        %s\n", cfg.Paths.DurableDir)
			fmt.Fprintf(out, "History DB:         %s\n", cfg.Paths.HistoryDB)
			fmt.Fprintf(out, "Auto create:        %s\n", yesNo(cfg.Defaults.AutoCreate))
			fmt.Fprintf(out, "Dynamic lookup:     %s\n", yesNo(cfg.Defaults.DynamicLookup))
			fmt.Fprintf(out, "New app naming:     %s\n", cfg.Defaults.NewAppNaming)
			fmt.Fprintf(out, "Enforcement:        %s\n", cfg.Enforcement.Type)
			fmt.Fprintf(out, "Match threshold:    %.2f\n", cfg.Matcher.SimilarityThreshold)
			fmt.Fprintf(out, "Package map:        %s", yesNo(cfg.PackageMap.Enabled))
			if cfg.PackageMap.Enabled {
				fmt.Fprintf(out, " (%s)", cfg.PackageMap.Path)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Slack notifications: %s\n", yesNo(cfg.Slack.Enabled))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "path", "p", "", "Configuration file to show")
	return cmd
}
