package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"packmule/internal/config"
	"packmule/internal/resolve"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Resolve and print an installer's identity without publishing",
		Long: `Expand the artifact in the scratch workspace, extract its identity
record, and print what a publish run would work with. Nothing is uploaded
and the catalog is not contacted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			resolver, err := ctx.resolver()
			if err != nil {
				return err
			}
			packages, err := ctx.packages()
			if err != nil {
				return err
			}
			var known func(string) bool
			if len(packages) > 0 {
				known = packages.Contains
			}

			res, err := resolver.Resolve(cmd.Context(), path, resolve.Options{
				QueryOnly:       true,
				KnownIdentifier: known,
			})
			if err != nil {
				return err
			}
			if res.CopiedPath != "" {
				defer os.Remove(res.CopiedPath)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Artifact:     %s\n", res.Artifact.Basename())
			fmt.Fprintf(out, "Kind:         %s\n", res.Artifact.Kind)
			if res.Artifact.InstallName != "" {
				fmt.Fprintf(out, "Install name: %s\n", res.Artifact.InstallName)
			}
			fmt.Fprintf(out, "Derived name: %s\n", res.DerivedName)
			fmt.Fprintf(out, "Identifier:   %s\n", res.Identity.Identifier)
			if res.Identity.Version != "" {
				fmt.Fprintf(out, "Version:      %s\n", res.Identity.Version)
			}
			if res.Identity.DisplayName != "" {
				fmt.Fprintf(out, "App bundle:   %s\n", res.Identity.DisplayName)
			}

			if names, ok := packages.Lookup(res.Identity.Identifier); ok {
				fmt.Fprintf(out, "Mapped name:  %s\n", names.ProdName)
				if names.TestName != "" {
					fmt.Fprintf(out, "Test name:    %s\n", names.TestName)
				}
			}
			return nil
		},
	}
	return cmd
}
