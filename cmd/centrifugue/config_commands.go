package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"centrifugue/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
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

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var configFlag string

	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Show the effective configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(configFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "Configuration file: %s\n\n", path)
			} else {
				fmt.Fprintf(out, "No configuration file found; showing defaults (checked %s)\n\n", path)
			}

			rows := [][]string{
				{"paths.download_dir", cfg.Paths.DownloadDir},
				{"paths.state_dir", cfg.Paths.StateDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"tools.ytdlp", cfg.Tools.YtDlp},
				{"tools.demucs", cfg.Tools.Demucs},
				{"tools.ffmpeg", cfg.Tools.FFmpeg},
				{"tools.ffprobe", cfg.Tools.FFprobe},
				{"separation.device", cfg.Separation.Device},
				{"separation.mp3_bitrate", fmt.Sprintf("%d", cfg.Separation.MP3Bitrate)},
				{"jobs.staleness_seconds", fmt.Sprintf("%d", cfg.Jobs.StalenessSeconds)},
				{"jobs.title_timeout", fmt.Sprintf("%d", cfg.Jobs.TitleTimeout)},
				{"jobs.download_timeout", fmt.Sprintf("%d", cfg.Jobs.DownloadTimeout)},
				{"jobs.mix_timeout", fmt.Sprintf("%d", cfg.Jobs.MixTimeout)},
				{"jobs.cancel_grace_seconds", fmt.Sprintf("%d", cfg.Jobs.CancelGraceSeconds)},
				{"history.enabled", fmt.Sprintf("%t", cfg.History.Enabled)},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
				{"logging.retention_days", fmt.Sprintf("%d", cfg.Logging.RetentionDays)},
			}
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	return cmd
}
