package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"centrifugue/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing config")
	}
	if cfg.Jobs.StalenessSeconds != 600 {
		t.Fatalf("expected default staleness 600, got %d", cfg.Jobs.StalenessSeconds)
	}
	if cfg.Separation.MP3Bitrate != 320 {
		t.Fatalf("expected default bitrate 320, got %d", cfg.Separation.MP3Bitrate)
	}
	if !cfg.History.Enabled {
		t.Fatal("expected history enabled by default")
	}
	if !filepath.IsAbs(cfg.Paths.DownloadDir) {
		t.Fatalf("expected expanded download dir, got %q", cfg.Paths.DownloadDir)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
download_dir = "` + filepath.Join(dir, "out") + `"
state_dir = "` + filepath.Join(dir, "state") + `"

[jobs]
staleness_seconds = 120

[separation]
device = "CPU"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: exists=%v path=%q", exists, resolved)
	}
	if cfg.Jobs.StalenessSeconds != 120 {
		t.Fatalf("expected staleness 120, got %d", cfg.Jobs.StalenessSeconds)
	}
	if cfg.Separation.Device != "cpu" {
		t.Fatalf("expected normalized device cpu, got %q", cfg.Separation.Device)
	}
	if cfg.ProgressFilePath() != filepath.Join(dir, "state", "progress.json") {
		t.Fatalf("unexpected progress path %q", cfg.ProgressFilePath())
	}
}

func TestValidateRejectsBadDevice(t *testing.T) {
	cfg := config.Default()
	cfg.Separation.Device = "tpu"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "separation.device") {
		t.Fatalf("expected device validation error, got %v", err)
	}
}

func TestValidateRejectsBadBitrate(t *testing.T) {
	cfg := config.Default()
	cfg.Separation.MP3Bitrate = 32
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected bitrate validation error")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[jobs]") {
		t.Fatal("sample config missing [jobs] section")
	}
}
