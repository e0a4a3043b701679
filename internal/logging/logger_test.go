package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConsoleHandlerFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger = WithComponent(logger, "supervisor")
	logger.Info("job started", String(FieldJobID, "job_42"), Int("percent", 5))

	line := buf.String()
	if !strings.Contains(line, "INFO supervisor: job started") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "job_id=job_42") || !strings.Contains(line, "percent=5") {
		t.Fatalf("missing attrs in line: %q", line)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Error("failed", String("message", "download failed: timeout"))
	if !strings.Contains(buf.String(), `message="download failed: timeout"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "worker.log")
	logger, err := New(Options{Level: "debug", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Debug("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("unexpected log contents: %q", string(data))
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "worker-old.log")
	fresh := filepath.Join(dir, "worker-new.log")
	keep := filepath.Join(dir, "worker-keep.log")
	for _, path := range []string{old, fresh, keep} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{old, keep} {
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := CleanupOldLogs(NewNop(), 7, dir, "worker-*.log", keep)
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected old log removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatal("expected fresh log kept")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatal("expected excluded log kept")
	}
}
