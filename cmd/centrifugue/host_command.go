package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"centrifugue/internal/logging"
	"centrifugue/internal/supervisor"
)

func newHostCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Serve the browser extension over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(ctx)
		},
	}
}

func runHost(cmdCtx *commandContext) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cmdCtx.fileLogger("host.log")
	if err != nil {
		return err
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "worker-*.log")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup, err := supervisor.New(cfg, cmdCtx.configPath, logger)
	if err != nil {
		return err
	}
	defer sup.Close()

	return sup.Serve(ctx, os.Stdin, os.Stdout)
}
