package ffprobe_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"centrifugue/internal/media/ffprobe"
)

func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestDurationSeconds(t *testing.T) {
	stub := writeStub(t, `echo '{"format":{"duration":"214.53"}}'`)
	got, err := ffprobe.DurationSeconds(context.Background(), stub, "/tmp/audio.wav")
	if err != nil {
		t.Fatalf("DurationSeconds failed: %v", err)
	}
	if got != 214.53 {
		t.Fatalf("expected 214.53, got %v", got)
	}
}

func TestDurationSecondsMissingDuration(t *testing.T) {
	stub := writeStub(t, `echo '{"format":{}}'`)
	if _, err := ffprobe.DurationSeconds(context.Background(), stub, "/tmp/audio.wav"); err == nil {
		t.Fatal("expected error for missing duration")
	}
}

func TestDurationSecondsToolFailure(t *testing.T) {
	stub := writeStub(t, `exit 1`)
	if _, err := ffprobe.DurationSeconds(context.Background(), stub, "/tmp/audio.wav"); err == nil {
		t.Fatal("expected error for non-zero exit")
	}
}

func TestDurationSecondsEmptyPath(t *testing.T) {
	if _, err := ffprobe.DurationSeconds(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
