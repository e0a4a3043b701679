package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"centrifugue/internal/jobstate"
	"centrifugue/internal/logging"
	"centrifugue/internal/supervisor"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sup, err := supervisor.New(cfg, ctx.configPath, logging.NewNop())
			if err != nil {
				return err
			}
			defer sup.Close()

			record := sup.Progress(context.Background())
			rows := statusRows(record)
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
}

func statusRows(record jobstate.Progress) [][]string {
	rows := [][]string{
		{"Stage", string(record.Stage)},
		{"Message", record.Message},
		{"Percent", strconv.Itoa(record.Percent) + "%"},
	}
	if record.VideoTitle != "" {
		rows = append(rows, []string{"Title", record.VideoTitle})
	}
	if record.JobID != "" {
		rows = append(rows, []string{"Job", record.JobID})
	}
	if record.Quality != "" {
		rows = append(rows, []string{"Quality", record.Quality})
	}
	if record.Genre != "" {
		rows = append(rows, []string{"Genre", record.Genre})
	}
	if record.EstimatedSeconds != nil {
		rows = append(rows, []string{"Estimated", (time.Duration(*record.EstimatedSeconds) * time.Second).String()})
	}
	if record.Error != "" {
		rows = append(rows, []string{"Error", record.Error})
	}
	if record.Timestamp != 0 {
		updated := time.UnixMilli(int64(record.Timestamp * 1000))
		rows = append(rows, []string{"Updated", updated.Local().Format(time.RFC1123)})
	}
	return rows
}
