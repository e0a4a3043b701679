// Package supervisor mediates between the browser extension and detached
// worker processes. It owns the busy check, orphan reconciliation, job
// registration, and cooperative cancellation; the heavy lifting happens in
// the worker it spawns.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"centrifugue/internal/config"
	"centrifugue/internal/deps"
	"centrifugue/internal/history"
	"centrifugue/internal/jobstate"
	"centrifugue/internal/logging"
	"centrifugue/internal/presets"
	"centrifugue/internal/procs"
	"centrifugue/internal/services"
	"centrifugue/internal/services/ytdlp"
	"centrifugue/internal/textutil"
)

// TitleResolver resolves a human-readable video title. Failures are
// tolerated; jobs run with a placeholder title instead.
type TitleResolver interface {
	Title(ctx context.Context, url string) (string, error)
}

// MP3Downloader performs a synchronous audio download.
type MP3Downloader interface {
	DownloadMP3(ctx context.Context, url, outputTemplate string) (string, error)
}

// SpawnFunc starts a detached worker for the given job and returns its pid.
type SpawnFunc func(job jobstate.Job) (int, error)

// Option configures the supervisor, mainly for tests.
type Option func(*Supervisor)

// WithAlive overrides process liveness probing.
func WithAlive(alive func(pid int) bool) Option {
	return func(s *Supervisor) { s.alive = alive }
}

// WithTerminate overrides process termination.
func WithTerminate(terminate func(pid int, grace time.Duration)) Option {
	return func(s *Supervisor) { s.terminate = terminate }
}

// WithSpawn overrides worker spawning.
func WithSpawn(spawn SpawnFunc) Option {
	return func(s *Supervisor) { s.spawn = spawn }
}

// WithTitleResolver overrides title resolution.
func WithTitleResolver(resolver TitleResolver) Option {
	return func(s *Supervisor) { s.titles = resolver }
}

// WithDownloader overrides the synchronous MP3 downloader.
func WithDownloader(downloader MP3Downloader) Option {
	return func(s *Supervisor) { s.downloader = downloader }
}

// Supervisor coordinates job state for one user. All state lives under the
// configured state directory, so any number of short-lived host processes
// observe the same single job slot.
type Supervisor struct {
	cfg        *config.Config
	cfgPath    string
	logger     *slog.Logger
	progress   *jobstate.ProgressStore
	registry   *jobstate.Registry
	journal    *history.Store
	titles     TitleResolver
	downloader MP3Downloader

	alive     func(pid int) bool
	terminate func(pid int, grace time.Duration)
	spawn     SpawnFunc

	reconcileOnce sync.Once
}

// New builds a supervisor from configuration. cfgPath is forwarded to
// spawned workers so they load identical settings.
func New(cfg *config.Config, cfgPath string, logger *slog.Logger, opts ...Option) (*Supervisor, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "supervisor")

	staleness := time.Duration(cfg.Jobs.StalenessSeconds) * time.Second
	s := &Supervisor{
		cfg:       cfg,
		cfgPath:   cfgPath,
		logger:    logger,
		progress:  jobstate.NewProgressStore(cfg.ProgressFilePath(), staleness, logger),
		registry:  jobstate.NewRegistry(cfg.JobFilePath(), logger),
		alive:     procs.Alive,
		terminate: procs.Terminate,
	}
	s.spawn = s.spawnWorker

	client, err := ytdlp.New(deps.Resolve("yt-dlp", cfg.Tools.YtDlp), cfg.Jobs.TitleTimeout, cfg.Jobs.DownloadTimeout)
	if err == nil {
		s.titles = client
		s.downloader = client
	}

	if cfg.History.Enabled {
		journal, err := history.Open(context.Background(), cfg.HistoryDBPath())
		if err != nil {
			logger.Warn("history journal unavailable", logging.Error(err))
		} else {
			s.journal = journal
		}
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases resources held by the supervisor.
func (s *Supervisor) Close() error {
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

// Reconcile detects a registered job whose worker died without reaching a
// terminal stage and surfaces it as an error. The file lock only serializes
// concurrent reconciles; job exclusivity rests on pid liveness.
func (s *Supervisor) Reconcile(ctx context.Context) {
	lock := flock.New(s.cfg.ReconcileLockPath())
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		// Another host process is already reconciling.
		return
	}
	defer lock.Unlock()

	job := s.registry.Load()
	if job == nil {
		return
	}
	if s.alive(job.PID) {
		return
	}

	record := s.progress.Read()
	if record.Stage.InFlight() || record.Stage == jobstate.StageStale {
		s.logger.Warn("reaping orphaned job",
			logging.JobID(job.JobID),
			slog.Int("pid", job.PID),
			slog.String("stage", string(record.Stage)))
		s.progress.Write(jobstate.Progress{
			Stage:      jobstate.StageError,
			Message:    "Previous job was interrupted",
			Percent:    record.Percent,
			VideoTitle: job.Title,
			JobID:      job.JobID,
			Action:     job.Action,
			Quality:    job.Quality,
			Genre:      job.Genre,
			Error:      "Previous job was interrupted",
		})
		s.recordHistory(ctx, *job, history.OutcomeInterrupted, "worker exited before finishing")
	}
	if job.Workspace != "" {
		if err := os.RemoveAll(job.Workspace); err != nil {
			s.logger.Debug("workspace cleanup failed", logging.Error(err))
		}
	}
	s.registry.Clear()
}

// StartStems launches a detached stem-separation worker and returns the new
// job's ID and resolved title. It fails with ErrConflict while another job's
// worker is alive.
func (s *Supervisor) StartStems(ctx context.Context, url, qualityName, genreName string) (string, string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", "", services.Wrap(services.ErrConfiguration, "supervisor", "start", "no URL provided", nil)
	}
	// Reap a dead predecessor so its registry entry cannot block the slot.
	s.Reconcile(ctx)
	if active := s.activeJob(); active != nil {
		// The existing job's ID rides along so the extension can resume
		// polling it.
		return active.JobID, "", services.Wrap(services.ErrConflict, "supervisor", "start",
			fmt.Sprintf("a job is already running (%s)", active.JobID), nil)
	}

	quality := presets.QualityByName(qualityName)
	genre := presets.GenreByName(genreName)

	title := s.resolveTitle(ctx, url, "stems")
	jobID := fmt.Sprintf("job_%d", time.Now().Unix())

	job := jobstate.Job{
		JobID:     jobID,
		Title:     title,
		Action:    "download_stems",
		Quality:   quality.Name,
		Genre:     genre.Name,
		URL:       url,
		StartedAt: float64(time.Now().UnixMilli()) / 1000,
	}
	pid, err := s.spawn(job)
	if err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, "supervisor", "start", "spawn worker", err)
	}
	job.PID = pid
	s.registry.Save(job)
	s.progress.Write(jobstate.Progress{
		Stage:      jobstate.StageDownloading,
		Message:    "Starting download...",
		Percent:    0,
		VideoTitle: title,
		JobID:      jobID,
		Action:     job.Action,
		Quality:    quality.Name,
		Genre:      genre.Name,
	})
	s.logger.Info("stems job started",
		logging.JobID(jobID),
		slog.Int("pid", pid),
		slog.String("quality", quality.Name),
		slog.String("genre", genre.Name))
	return jobID, title, nil
}

// DownloadMP3 performs a plain MP3 download synchronously and returns the
// resulting file name and title. Plain downloads do not occupy the job slot.
func (s *Supervisor) DownloadMP3(ctx context.Context, url string) (string, string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", "", services.Wrap(services.ErrConfiguration, "supervisor", "download", "no URL provided", nil)
	}
	if s.downloader == nil {
		return "", "", services.Wrap(services.ErrConfiguration, "supervisor", "download", "yt-dlp not configured", nil)
	}

	title := s.resolveTitle(ctx, url, "audio")
	started := time.Now()
	s.progress.Write(jobstate.Progress{
		Stage:      jobstate.StageDownloading,
		Message:    "Downloading MP3...",
		Percent:    10,
		VideoTitle: title,
		Action:     "download_mp3",
	})

	template := filepath.Join(s.cfg.Paths.DownloadDir, "%(title)s.%(ext)s")
	path, err := s.downloader.DownloadMP3(ctx, url, template)
	if err != nil {
		s.progress.Write(jobstate.Progress{
			Stage:      jobstate.StageError,
			Message:    "Download failed",
			Percent:    10,
			VideoTitle: title,
			Action:     "download_mp3",
			Error:      err.Error(),
		})
		s.recordHistory(ctx, jobstate.Job{
			Title: title, Action: "download_mp3", URL: url,
			StartedAt: float64(started.UnixMilli()) / 1000,
		}, history.OutcomeError, err.Error())
		return "", "", err
	}

	s.progress.Write(jobstate.Progress{
		Stage:      jobstate.StageComplete,
		Message:    "Download complete",
		Percent:    100,
		VideoTitle: title,
		Action:     "download_mp3",
	})
	s.recordHistory(ctx, jobstate.Job{
		Title: title, Action: "download_mp3", URL: url,
		StartedAt: float64(started.UnixMilli()) / 1000,
	}, history.OutcomeComplete, "")
	return filepath.Base(path), title, nil
}

// Progress returns the current user-facing status. The first read of a
// process reconciles orphans so a crashed worker surfaces as an error
// rather than a forever-running job.
func (s *Supervisor) Progress(ctx context.Context) jobstate.Progress {
	s.reconcileOnce.Do(func() { s.Reconcile(ctx) })
	return s.progress.Read()
}

// Cancel terminates the active worker and clears both persisted records,
// leaving the system idle. Cancellation is optimistic: the signal is sent
// and state is cleared without confirming the process died. With nothing
// in flight it fails with ErrNotFound, which a repeated cancel also gets.
func (s *Supervisor) Cancel(ctx context.Context) (string, error) {
	record := s.progress.Read()
	if !record.Stage.InFlight() && record.Stage != jobstate.StageStale {
		return "", services.Wrap(services.ErrNotFound, "supervisor", "cancel", "no active job", nil)
	}

	if job := s.registry.Load(); job != nil {
		if s.alive(job.PID) {
			grace := time.Duration(s.cfg.Jobs.CancelGraceSeconds) * time.Second
			s.terminate(job.PID, grace)
		}
		if job.Workspace != "" {
			if err := os.RemoveAll(job.Workspace); err != nil {
				s.logger.Debug("workspace cleanup failed", logging.Error(err))
			}
		}
		s.recordHistory(ctx, *job, history.OutcomeCancelled, "")
		s.logger.Info("job cancelled", logging.JobID(job.JobID), slog.Int("pid", job.PID))
	}

	s.progress.Clear()
	s.registry.Clear()
	return "Job cancelled", nil
}

// ActiveJob returns the registered job if its worker is still alive.
func (s *Supervisor) ActiveJob() *jobstate.Job {
	return s.activeJob()
}

func (s *Supervisor) activeJob() *jobstate.Job {
	job := s.registry.Load()
	if job == nil || !s.alive(job.PID) {
		return nil
	}
	return job
}

func (s *Supervisor) resolveTitle(ctx context.Context, url, fallback string) string {
	if s.titles == nil {
		return fallback
	}
	title, err := s.titles.Title(ctx, url)
	if err != nil {
		s.logger.Debug("title resolution failed", logging.Error(err))
		return fallback
	}
	sanitized := textutil.SanitizeFileName(title)
	if sanitized == "" {
		return fallback
	}
	return sanitized
}

func (s *Supervisor) recordHistory(ctx context.Context, job jobstate.Job, outcome, detail string) {
	if s.journal == nil {
		return
	}
	entry := history.Entry{
		JobID:      job.JobID,
		Action:     job.Action,
		Title:      job.Title,
		URL:        job.URL,
		Quality:    job.Quality,
		Genre:      job.Genre,
		Outcome:    outcome,
		Detail:     detail,
		FinishedAt: time.Now(),
	}
	if job.StartedAt > 0 {
		entry.StartedAt = time.UnixMilli(int64(job.StartedAt * 1000))
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Debug("history record failed", logging.Error(err))
	}
}

// spawnWorker launches this binary's hidden worker command in a new session
// so the job survives the host exiting.
func (s *Supervisor) spawnWorker(job jobstate.Job) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locate executable: %w", err)
	}
	args := []string{
		"worker",
		"--job-id", job.JobID,
		"--url", job.URL,
		"--title", job.Title,
		"--quality", job.Quality,
		"--genre", job.Genre,
	}
	if s.cfgPath != "" {
		args = append(args, "--config", s.cfgPath)
	}
	return procs.SpawnDetached(executable, args...)
}
