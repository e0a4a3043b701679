package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"centrifugue/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var onlyFailed bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "History is disabled in configuration.")
				return nil
			}

			store, err := history.Open(context.Background(), cfg.HistoryDBPath())
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			entries, err := store.List(context.Background(), limit, onlyFailed)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				detail := entry.Detail
				if len(detail) > 60 {
					detail = detail[:57] + "..."
				}
				rows = append(rows, []string{
					entry.JobID,
					entry.Action,
					entry.Title,
					entry.Outcome,
					entry.FinishedAt.Local().Format(time.DateTime),
					detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Job", "Action", "Title", "Outcome", "Finished", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	cmd.Flags().BoolVar(&onlyFailed, "failed", false, "Show only jobs that did not complete")
	return cmd
}
