package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"centrifugue/internal/supervisor"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active job",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.fileLogger("host.log")
			if err != nil {
				return err
			}
			sup, err := supervisor.New(cfg, ctx.configPath, logger)
			if err != nil {
				return err
			}
			defer sup.Close()

			msg, err := sup.Cancel(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}
