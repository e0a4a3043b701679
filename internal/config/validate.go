package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSeparation(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DownloadDir == "" {
		return errors.New("paths.download_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateSeparation() error {
	switch c.Separation.Device {
	case "", "cpu", "cuda", "mps":
	default:
		return fmt.Errorf("separation.device: unsupported value %q (use cpu, cuda, or mps)", c.Separation.Device)
	}
	if c.Separation.MP3Bitrate < 64 || c.Separation.MP3Bitrate > 320 {
		return errors.New("separation.mp3_bitrate must be between 64 and 320")
	}
	return nil
}

func (c *Config) validateJobs() error {
	return ensurePositiveMap(map[string]int{
		"jobs.staleness_seconds":    c.Jobs.StalenessSeconds,
		"jobs.title_timeout":        c.Jobs.TitleTimeout,
		"jobs.download_timeout":     c.Jobs.DownloadTimeout,
		"jobs.mix_timeout":          c.Jobs.MixTimeout,
		"jobs.cancel_grace_seconds": c.Jobs.CancelGraceSeconds,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
