package main

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"

	"github.com/spf13/cobra"

	"packmule/internal/config"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query the remote catalog",
	}
	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogCategoriesCommand(ctx))
	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the catalog's custom app entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.catalogClient(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := client.List(cmd.Context())
			if err != nil {
				return err
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(entries)
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.Name,
					path.Base(entry.FileKey),
					config.DisplayEnforcement(entry.InstallEnforcement),
					yesNo(entry.ShowInSelfService),
					entry.FileUpdated,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "File", "Enforcement", "Self Service", "File Updated"}, rows))
			fmt.Fprintf(out, "%d entries\n", len(entries))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit raw JSON")
	return cmd
}

func newCatalogCategoriesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the tenant's Self Service categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.catalogClient(cmd.Context())
			if err != nil {
				return err
			}
			categories, err := client.Categories(cmd.Context())
			if err != nil {
				return err
			}
			sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })

			rows := make([][]string, 0, len(categories))
			for _, category := range categories {
				rows = append(rows, []string{category.Name, category.ID})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Name", "ID"}, rows))
			return nil
		},
	}
}
