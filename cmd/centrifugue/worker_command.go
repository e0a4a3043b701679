package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"centrifugue/internal/textutil"
	"centrifugue/internal/worker"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var params worker.Params

	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Run one separation job (spawned by the host)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(ctx, params)
		},
	}

	cmd.Flags().StringVar(&params.JobID, "job-id", "", "Job identifier")
	cmd.Flags().StringVar(&params.URL, "url", "", "Video URL")
	cmd.Flags().StringVar(&params.Title, "title", "", "Resolved video title")
	cmd.Flags().StringVar(&params.Quality, "quality", "", "Quality preset")
	cmd.Flags().StringVar(&params.Genre, "genre", "", "Genre mode")
	_ = cmd.MarkFlagRequired("job-id")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func runWorker(cmdCtx *commandContext, params worker.Params) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cmdCtx.fileLogger(fmt.Sprintf("worker-%s.log", textutil.SanitizeToken(params.JobID)))
	if err != nil {
		return err
	}

	// Cancellation arrives as SIGTERM from the host.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := worker.New(cfg, logger, params)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	return pipeline.Run(ctx)
}
