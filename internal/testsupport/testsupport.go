// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"centrifugue/internal/config"
)

// NewConfig returns a validated configuration rooted in temporary
// directories, suitable for exercising job state without touching the
// user's real state.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Tools.YtDlp = "yt-dlp"
	cfg.Tools.Demucs = "demucs"
	cfg.Tools.FFmpeg = "ffmpeg"
	cfg.Tools.FFprobe = "ffprobe"

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WriteStubBinary creates an executable shell script named name inside dir
// with the given body and returns its path. Useful for standing in for
// external tools.
func WriteStubBinary(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub binary: %v", err)
	}
	return path
}
