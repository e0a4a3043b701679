package jobstate

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/renameio/v2"

	"centrifugue/internal/logging"
)

// ProgressStore persists the progress record at a fixed path. All operations
// are best-effort: the record is advisory UI state, not a journal, so I/O
// failures are logged and swallowed rather than surfaced to callers.
type ProgressStore struct {
	path      string
	staleness time.Duration
	logger    *slog.Logger
}

// NewProgressStore builds a store for path. staleness controls when an
// in-flight record is reinterpreted as stale on read; values <= 0 fall back
// to ten minutes.
func NewProgressStore(path string, staleness time.Duration, logger *slog.Logger) *ProgressStore {
	if staleness <= 0 {
		staleness = 10 * time.Minute
	}
	return &ProgressStore{
		path:      path,
		staleness: staleness,
		logger:    logging.WithComponent(logger, "progress-store"),
	}
}

// Write replaces the persisted record, stamping it with the current instant.
// The replace is atomic so pollers only ever observe complete snapshots.
func (s *ProgressStore) Write(record Progress) {
	record.Timestamp = float64(time.Now().UnixMilli()) / 1000
	payload, err := json.Marshal(record)
	if err != nil {
		s.logger.Debug("marshal progress record failed", logging.Error(err))
		return
	}
	if err := renameio.WriteFile(s.path, payload, 0o644); err != nil {
		s.logger.Debug("write progress record failed", logging.Error(err))
	}
}

// Read returns the last written record. A missing or unreadable file yields
// the default idle record. An in-flight record older than the staleness
// threshold is reported as stale without mutating the stored stage.
func (s *ProgressStore) Read() Progress {
	idle := Progress{Stage: StageIdle, Message: "Ready", Percent: 0}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("read progress record failed", logging.Error(err))
		}
		return idle
	}

	var record Progress
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Debug("decode progress record failed", logging.Error(err))
		return idle
	}

	if record.Stage.InFlight() {
		age := time.Since(time.UnixMilli(int64(record.Timestamp * 1000)))
		if age > s.staleness {
			record.Stage = StageStale
			record.Message = "Job appears to have stalled"
		}
	}
	return record
}

// Clear removes the record entirely.
func (s *ProgressStore) Clear() {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("clear progress record failed", logging.Error(err))
	}
}
