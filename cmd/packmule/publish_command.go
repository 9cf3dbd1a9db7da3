package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"packmule/internal/brew"
	"packmule/internal/command"
	"packmule/internal/config"
	"packmule/internal/history"
	"packmule/internal/publish"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var (
		name         string
		testName     string
		category     string
		testCategory string
		cask         string
		forceCreate  bool
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "publish [artifact...]",
		Short: "Resolve installer identities and push them to the catalog",
		Long: `Resolve the identity of one or more installer artifacts (.pkg or .dmg)
and publish each to the software catalog: the matching entry is updated in
place, or a new entry is created when --create is passed or auto_create is
enabled.

Examples:
  packmule publish ~/Downloads/MyApp-2.0.1.pkg
  packmule publish --brew firefox
  packmule publish --name "MyApp" --category "Productivity" MyApp.dmg
  packmule publish --dry-run *.pkg`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()

			artifacts := append([]string(nil), args...)
			if cask != "" {
				fetched, err := brew.Fetch(runCtx, command.New(logger), cask, logger)
				if err != nil {
					return err
				}
				artifacts = append(artifacts, fetched)
			}
			if len(artifacts) == 0 {
				return fmt.Errorf("no artifacts given; pass a file path or --brew <cask>")
			}
			if len(artifacts) > 1 && (name != "" || testName != "" || category != "" || testCategory != "") {
				return fmt.Errorf("name and category flags are ambiguous with multiple artifacts; publish them one at a time")
			}

			service, cleanup, err := ctx.publishService(runCtx)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			for _, raw := range artifacts {
				path, err := config.ExpandPath(raw)
				if err != nil {
					return err
				}
				outcomes, err := service.Publish(runCtx, publish.Options{
					ArtifactPath: path,
					Name:         name,
					TestName:     testName,
					Category:     category,
					TestCategory: testCategory,
					ForceCreate:  forceCreate,
					DryRun:       dryRun || cfg.Defaults.DryRun,
				})
				if err != nil {
					return err
				}
				printOutcomes(out, outcomes)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Catalog entry name (default: derived from the artifact)")
	cmd.Flags().StringVar(&testName, "test-name", "", "Also publish to an entry under this test name")
	cmd.Flags().StringVar(&category, "category", "", "Self Service category for the entry")
	cmd.Flags().StringVar(&testCategory, "test-category", "", "Self Service category for the test entry")
	cmd.Flags().StringVar(&cask, "brew", "", "Fetch the artifact from this Homebrew cask")
	cmd.Flags().BoolVar(&forceCreate, "create", false, "Always create a new catalog entry")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve and plan without uploading or writing")

	return cmd
}

func printOutcomes(out io.Writer, outcomes []publish.Outcome) {
	for _, outcome := range outcomes {
		label := outcome.Action
		if outcome.DryRun {
			label = "planned " + label
		}
		switch {
		case outcome.Action == history.ActionSkipped:
			fmt.Fprintf(out, "%s: %s (%s)\n", label, outcome.AppName, outcome.Detail)
		case outcome.EntryURL != "":
			fmt.Fprintf(out, "%s: %s %s -> %s\n", label, outcome.AppName, outcome.Version, outcome.EntryURL)
		default:
			fmt.Fprintf(out, "%s: %s %s\n", label, outcome.AppName, outcome.Version)
		}
	}
}
