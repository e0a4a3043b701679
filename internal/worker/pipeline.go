// Package worker runs one stem-separation job from download to delivered
// files. It executes in a detached process; all status flows out through
// the shared progress record, all identity through the job registry.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"centrifugue/internal/config"
	"centrifugue/internal/deps"
	"centrifugue/internal/fileutil"
	"centrifugue/internal/history"
	"centrifugue/internal/jobstate"
	"centrifugue/internal/logging"
	"centrifugue/internal/media/ffprobe"
	"centrifugue/internal/presets"
	"centrifugue/internal/services/demucs"
	"centrifugue/internal/services/ffmpegmix"
	"centrifugue/internal/services/ytdlp"
)

// Params identify the job this worker executes.
type Params struct {
	JobID   string
	URL     string
	Title   string
	Quality string
	Genre   string
}

// Downloader fetches the source audio.
type Downloader interface {
	DownloadAudio(ctx context.Context, url, outputPath, format string) error
}

// Separator splits audio into stems.
type Separator interface {
	Separate(ctx context.Context, input, outDir string, quality presets.Quality, onPercent func(int)) error
}

// Mixer combines stems into one track.
type Mixer interface {
	Mix(ctx context.Context, inputs []string, output string) error
}

// DurationProbe reports a clip's length in seconds.
type DurationProbe func(ctx context.Context, path string) (float64, error)

// Option configures the pipeline, mainly for tests.
type Option func(*Pipeline)

// WithDownloader overrides the audio downloader.
func WithDownloader(d Downloader) Option {
	return func(p *Pipeline) {
		p.downloader = d
		p.toolsInjected = true
	}
}

// WithSeparator overrides the separation engine.
func WithSeparator(s Separator) Option {
	return func(p *Pipeline) {
		p.separator = s
		p.toolsInjected = true
	}
}

// WithMixer overrides the stem mixer.
func WithMixer(m Mixer) Option {
	return func(p *Pipeline) {
		p.mixer = m
		p.toolsInjected = true
	}
}

// WithDurationProbe overrides audio duration probing.
func WithDurationProbe(probe DurationProbe) Option {
	return func(p *Pipeline) { p.probe = probe }
}

// Pipeline executes one job.
type Pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	params   Params
	quality  presets.Quality
	genre    presets.Genre
	progress *jobstate.ProgressStore
	registry *jobstate.Registry
	journal  *history.Store

	downloader Downloader
	separator  Separator
	mixer      Mixer
	probe      DurationProbe

	// toolsInjected marks that tests replaced the external tools, so the
	// binary preflight is skipped.
	toolsInjected bool

	startedAt time.Time
}

// New builds a pipeline for params using the configured external tools.
func New(cfg *config.Config, logger *slog.Logger, params Params, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "worker")

	if strings.TrimSpace(params.JobID) == "" {
		return nil, errors.New("job ID required")
	}
	if strings.TrimSpace(params.URL) == "" {
		return nil, errors.New("URL required")
	}
	if strings.TrimSpace(params.Title) == "" {
		params.Title = "stems"
	}

	staleness := time.Duration(cfg.Jobs.StalenessSeconds) * time.Second
	p := &Pipeline{
		cfg:      cfg,
		logger:   logger,
		params:   params,
		quality:  presets.QualityByName(params.Quality),
		genre:    presets.GenreByName(params.Genre),
		progress: jobstate.NewProgressStore(cfg.ProgressFilePath(), staleness, logger),
		registry: jobstate.NewRegistry(cfg.JobFilePath(), logger),
	}

	downloader, err := ytdlp.New(deps.Resolve("yt-dlp", cfg.Tools.YtDlp), cfg.Jobs.TitleTimeout, cfg.Jobs.DownloadTimeout)
	if err == nil {
		p.downloader = downloader
	}
	separator, err := demucs.New(deps.Resolve("demucs", cfg.Tools.Demucs), cfg.Separation.Device, cfg.Separation.MP3Bitrate)
	if err == nil {
		p.separator = separator
	}
	mixer, err := ffmpegmix.New(deps.Resolve("ffmpeg", cfg.Tools.FFmpeg), cfg.Separation.MP3Bitrate, cfg.Jobs.MixTimeout)
	if err == nil {
		p.mixer = mixer
	}
	probeBinary := deps.Resolve("ffprobe", cfg.Tools.FFprobe)
	p.probe = func(ctx context.Context, path string) (float64, error) {
		return ffprobe.DurationSeconds(ctx, probeBinary, path)
	}

	if cfg.History.Enabled {
		journal, err := history.Open(context.Background(), cfg.HistoryDBPath())
		if err != nil {
			logger.Warn("history journal unavailable", logging.Error(err))
		} else {
			p.journal = journal
		}
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Close releases pipeline resources.
func (p *Pipeline) Close() error {
	if p.journal != nil {
		return p.journal.Close()
	}
	return nil
}

// Run executes the job to completion. On failure the error is published to
// the progress record; a cancelled context leaves the record alone because
// the supervisor wrote the cancellation outcome already.
func (p *Pipeline) Run(ctx context.Context) error {
	p.startedAt = time.Now()
	p.logger.Info("job starting",
		logging.JobID(p.params.JobID),
		slog.String("quality", p.quality.Name),
		slog.String("genre", p.genre.Name))

	if err := p.preflight(); err != nil {
		p.fail(ctx, 0, err)
		return err
	}

	workspace := filepath.Join(p.cfg.Paths.StateDir, "work", uuid.NewString())
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		p.fail(ctx, 0, fmt.Errorf("create workspace: %w", err))
		return fmt.Errorf("create workspace: %w", err)
	}
	// Rewrite the full registry record rather than patching the one the
	// supervisor wrote: if the supervisor has not persisted it yet, the
	// workspace would otherwise go unrecorded and survive cancellation.
	p.registry.Save(jobstate.Job{
		JobID:     p.params.JobID,
		PID:       os.Getpid(),
		Workspace: workspace,
		Title:     p.params.Title,
		Action:    "download_stems",
		Quality:   p.quality.Name,
		Genre:     p.genre.Name,
		URL:       p.params.URL,
	})
	defer fileutil.RemoveDirQuiet(workspace)

	err := p.run(ctx, workspace)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		// Cancellation: the supervisor owns the terminal record.
		p.logger.Info("job cancelled", logging.JobID(p.params.JobID))
		return err
	}
	return err
}

func (p *Pipeline) run(ctx context.Context, workspace string) error {
	// Download.
	p.report(ctx, jobstate.StageDownloading, "Downloading audio...", 5, nil)
	audioPath := filepath.Join(workspace, "audio.wav")
	if err := p.downloader.DownloadAudio(ctx, p.params.URL, audioPath, "wav"); err != nil {
		p.fail(ctx, 5, err)
		return err
	}

	// Estimate separation time from the clip length; the UI shows a
	// countdown even when probing fails.
	estimate := presets.EstimateSecondsFor(p.params.Quality, p.probeDuration(ctx, audioPath))
	p.report(ctx, jobstate.StageProcessing, "Separating stems...", 10, &estimate)

	// Separate. Engine progress lands in the 10-90 band; the band edges
	// belong to download and finalize.
	separatedDir := filepath.Join(workspace, "separated")
	lastPercent := 10
	err := p.separator.Separate(ctx, audioPath, separatedDir, p.quality, func(enginePercent int) {
		scaled := 10 + enginePercent*80/100
		if scaled > 90 {
			scaled = 90
		}
		if scaled > lastPercent {
			lastPercent = scaled
			p.report(ctx, jobstate.StageProcessing, "Separating stems...", scaled, &estimate)
		}
	})
	if err != nil {
		p.fail(ctx, lastPercent, err)
		return err
	}

	stemDir, err := demucs.LocateStems(separatedDir, p.quality.Model, "audio")
	if err != nil {
		p.fail(ctx, lastPercent, err)
		return err
	}

	// Deliver.
	p.report(ctx, jobstate.StageFinalizing, "Saving stems...", 92, nil)
	outputDir, fileCount, err := p.deliver(ctx, stemDir)
	if err != nil {
		p.fail(ctx, 92, err)
		return err
	}

	p.registry.Clear()
	p.report(ctx, jobstate.StageComplete,
		fmt.Sprintf("Complete! %d files saved to %s", fileCount, filepath.Base(outputDir)), 100, nil)
	p.recordHistory(ctx, history.OutcomeComplete, "")
	p.logger.Info("job complete",
		logging.JobID(p.params.JobID),
		slog.Int("files", fileCount),
		slog.String("output_dir", outputDir))
	return nil
}

// deliver copies and mixes stems into the final download folder and returns
// the folder plus the number of files produced. A failed mix degrades to the
// copied stems rather than failing the job; producing nothing at all is an
// error.
func (p *Pipeline) deliver(ctx context.Context, stemDir string) (string, int, error) {
	folder := fmt.Sprintf("%s - %s%s", p.params.Title, p.genre.FolderSuffix, p.quality.FolderSuffix)
	outputDir := filepath.Join(p.cfg.Paths.DownloadDir, folder)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create output directory: %w", err)
	}

	fileCount := 0
	for _, stem := range p.genre.Stems {
		display, ok := presets.StemDisplayName(stem)
		if !ok {
			continue
		}
		src := filepath.Join(stemDir, stem+".mp3")
		dst := filepath.Join(outputDir, fmt.Sprintf("%s - %s.mp3", p.params.Title, display))
		if err := fileutil.CopyFile(src, dst); err != nil {
			p.logger.Warn("stem missing from engine output",
				slog.String("stem", stem), logging.Error(err))
			continue
		}
		fileCount++
	}

	for combined, sources := range p.genre.Combine {
		if p.mixer == nil {
			p.logger.Warn("mixer unavailable, skipping combined track",
				slog.String("track", combined))
			continue
		}
		inputs := make([]string, 0, len(sources))
		for _, stem := range sources {
			path := filepath.Join(stemDir, stem+".mp3")
			if _, err := os.Stat(path); err == nil {
				inputs = append(inputs, path)
			}
		}
		if len(inputs) == 0 {
			continue
		}
		dst := filepath.Join(outputDir, fmt.Sprintf("%s - %s.mp3", p.params.Title, displayName(combined)))
		if err := p.mixer.Mix(ctx, inputs, dst); err != nil {
			p.logger.Warn("mix failed, keeping individual stems",
				slog.String("track", combined), logging.Error(err))
			continue
		}
		fileCount++
	}

	if fileCount == 0 {
		return "", 0, errors.New("no output files were produced")
	}
	return outputDir, fileCount, nil
}

// preflight verifies the external toolchain before any state changes. The
// injectable fakes used in tests bypass the binary checks.
func (p *Pipeline) preflight() error {
	if p.downloader == nil || p.separator == nil {
		return errors.New("required tools are not configured")
	}
	if p.toolsInjected {
		return nil
	}
	for _, status := range deps.CheckBinaries(deps.DefaultRequirements(p.cfg)) {
		if status.Available || status.Optional {
			continue
		}
		return fmt.Errorf("%s unavailable: %s", status.Name, status.Detail)
	}
	return nil
}

func (p *Pipeline) probeDuration(ctx context.Context, path string) float64 {
	if p.probe == nil {
		return 0
	}
	duration, err := p.probe(ctx, path)
	if err != nil {
		p.logger.Debug("duration probe failed", logging.Error(err))
		return 0
	}
	return duration
}

func (p *Pipeline) report(ctx context.Context, stage jobstate.Stage, message string, percent int, estimated *int) {
	if ctx.Err() != nil {
		// The host already wrote the cancellation outcome.
		return
	}
	p.progress.Write(jobstate.Progress{
		Stage:            stage,
		Message:          message,
		Percent:          percent,
		EstimatedSeconds: estimated,
		VideoTitle:       p.params.Title,
		JobID:            p.params.JobID,
		Action:           "download_stems",
		Quality:          p.quality.Name,
		Genre:            p.genre.Name,
	})
}

func (p *Pipeline) fail(ctx context.Context, percent int, cause error) {
	if ctx.Err() != nil {
		return
	}
	p.logger.Error("job failed", logging.JobID(p.params.JobID), logging.Error(cause))
	p.progress.Write(jobstate.Progress{
		Stage:      jobstate.StageError,
		Message:    "Job failed",
		Percent:    percent,
		VideoTitle: p.params.Title,
		JobID:      p.params.JobID,
		Action:     "download_stems",
		Quality:    p.quality.Name,
		Genre:      p.genre.Name,
		Error:      cause.Error(),
	})
	p.registry.Clear()
	p.recordHistory(ctx, history.OutcomeError, cause.Error())
}

func (p *Pipeline) recordHistory(ctx context.Context, outcome, detail string) {
	if p.journal == nil {
		return
	}
	entry := history.Entry{
		JobID:      p.params.JobID,
		Action:     "download_stems",
		Title:      p.params.Title,
		URL:        p.params.URL,
		Quality:    p.quality.Name,
		Genre:      p.genre.Name,
		Outcome:    outcome,
		Detail:     detail,
		StartedAt:  p.startedAt,
		FinishedAt: time.Now(),
	}
	if err := p.journal.Record(ctx, entry); err != nil {
		p.logger.Debug("history record failed", logging.Error(err))
	}
}

// displayName capitalizes an engine track name for output filenames
// ("beat" becomes "Beat").
func displayName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
