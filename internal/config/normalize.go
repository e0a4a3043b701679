package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeSeparation()
	c.normalizeJobs()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.YtDlp = strings.TrimSpace(c.Tools.YtDlp)
	c.Tools.Demucs = strings.TrimSpace(c.Tools.Demucs)
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
}

func (c *Config) normalizeSeparation() {
	c.Separation.Device = strings.ToLower(strings.TrimSpace(c.Separation.Device))
	if c.Separation.MP3Bitrate <= 0 {
		c.Separation.MP3Bitrate = defaultMP3Bitrate
	}
}

func (c *Config) normalizeJobs() {
	if c.Jobs.StalenessSeconds <= 0 {
		c.Jobs.StalenessSeconds = defaultStalenessSeconds
	}
	if c.Jobs.TitleTimeout <= 0 {
		c.Jobs.TitleTimeout = defaultTitleTimeout
	}
	if c.Jobs.DownloadTimeout <= 0 {
		c.Jobs.DownloadTimeout = defaultDownloadTimeout
	}
	if c.Jobs.MixTimeout <= 0 {
		c.Jobs.MixTimeout = defaultMixTimeout
	}
	if c.Jobs.CancelGraceSeconds <= 0 {
		c.Jobs.CancelGraceSeconds = defaultCancelGraceSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
