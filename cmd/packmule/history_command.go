package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"packmule/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent publish runs from the local ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ledger, err := history.Open(cfg.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer ledger.Close()

			events, err := ledger.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No publish runs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(events))
			for _, event := range events {
				when := ""
				if !event.CreatedAt.IsZero() {
					when = event.CreatedAt.Local().Format(time.DateTime)
				}
				rows = append(rows, []string{
					when,
					event.AppName,
					event.Action,
					event.Version,
					event.Artifact,
					yesNo(event.DryRun),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"When", "App", "Action", "Version", "Artifact", "Dry Run"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of runs to show")
	return cmd
}
