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

// Registry persists the single active-job record. Its lifetime is
// independent from the progress record so liveness can still be verified
// when progress reporting has failed. Same best-effort semantics as
// ProgressStore.
type Registry struct {
	path   string
	logger *slog.Logger
}

// NewRegistry builds a registry backed by path.
func NewRegistry(path string, logger *slog.Logger) *Registry {
	return &Registry{path: path, logger: logging.WithComponent(logger, "job-registry")}
}

// Save replaces the persisted record. A zero StartedAt is stamped with the
// current instant.
func (r *Registry) Save(job Job) {
	if job.StartedAt == 0 {
		job.StartedAt = float64(time.Now().UnixMilli()) / 1000
	}
	payload, err := json.Marshal(job)
	if err != nil {
		r.logger.Debug("marshal job record failed", logging.Error(err))
		return
	}
	if err := renameio.WriteFile(r.path, payload, 0o644); err != nil {
		r.logger.Debug("write job record failed", logging.Error(err))
	}
}

// Load returns the current record, or nil when none exists or it cannot be
// decoded.
func (r *Registry) Load() *Job {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Debug("read job record failed", logging.Error(err))
		}
		return nil
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		r.logger.Debug("decode job record failed", logging.Error(err))
		return nil
	}
	return &job
}

// Clear removes the record entirely.
func (r *Registry) Clear() {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.logger.Debug("clear job record failed", logging.Error(err))
	}
}
