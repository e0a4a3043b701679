package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"centrifugue/internal/jobstate"
	"centrifugue/internal/services"
	"centrifugue/internal/testsupport"
)

type fakeTitles struct {
	title string
	err   error
}

func (f fakeTitles) Title(context.Context, string) (string, error) {
	return f.title, f.err
}

type fakeDownloader struct {
	path string
	err  error
	url  string
}

func (f *fakeDownloader) DownloadMP3(_ context.Context, url, _ string) (string, error) {
	f.url = url
	return f.path, f.err
}

type spawnRecorder struct {
	pid int
	err error
	job jobstate.Job
}

func (r *spawnRecorder) spawn(job jobstate.Job) (int, error) {
	r.job = job
	return r.pid, r.err
}

func newTestSupervisor(t *testing.T, opts ...Option) *Supervisor {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	base := []Option{
		WithAlive(func(int) bool { return false }),
		WithTerminate(func(int, time.Duration) {}),
		WithSpawn(func(jobstate.Job) (int, error) { return 4242, nil }),
		WithTitleResolver(fakeTitles{title: "Test Video"}),
		WithDownloader(&fakeDownloader{path: "/tmp/out.mp3"}),
	}
	s, err := New(cfg, "", nil, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStartStemsRegistersJob(t *testing.T) {
	recorder := &spawnRecorder{pid: 999}
	s := newTestSupervisor(t, WithSpawn(recorder.spawn), WithAlive(func(int) bool { return true }))

	jobID, title, err := s.StartStems(context.Background(), "https://example.test/v", "high", "hiphop")
	if err != nil {
		t.Fatalf("StartStems: %v", err)
	}
	if !strings.HasPrefix(jobID, "job_") {
		t.Fatalf("job ID %q lacks prefix", jobID)
	}
	if title != "Test Video" {
		t.Fatalf("title = %q", title)
	}
	if recorder.job.Quality != "high" || recorder.job.Genre != "hiphop" {
		t.Fatalf("spawned job = %+v", recorder.job)
	}

	record := s.Progress(context.Background())
	if record.Stage != jobstate.StageDownloading || record.Percent != 0 {
		t.Fatalf("initial progress = %+v", record)
	}
	if record.JobID != jobID {
		t.Fatalf("progress job ID %q != %q", record.JobID, jobID)
	}
}

func TestStartStemsBusyWhileWorkerAlive(t *testing.T) {
	s := newTestSupervisor(t, WithAlive(func(int) bool { return true }))

	firstID, _, err := s.StartStems(context.Background(), "https://example.test/a", "fast", "full")
	if err != nil {
		t.Fatalf("first StartStems: %v", err)
	}
	conflictID, _, err := s.StartStems(context.Background(), "https://example.test/b", "fast", "full")
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if conflictID != firstID {
		t.Fatalf("conflict reported job %q, want %q", conflictID, firstID)
	}
}

func TestStartStemsAllowedAfterWorkerDeath(t *testing.T) {
	s := newTestSupervisor(t)

	if _, _, err := s.StartStems(context.Background(), "https://example.test/a", "fast", "full"); err != nil {
		t.Fatalf("first StartStems: %v", err)
	}
	// Liveness probe reports the first worker dead, so the slot is free.
	if _, _, err := s.StartStems(context.Background(), "https://example.test/b", "fast", "full"); err != nil {
		t.Fatalf("second StartStems: %v", err)
	}
}

func TestStartStemsTitleFallback(t *testing.T) {
	s := newTestSupervisor(t, WithTitleResolver(fakeTitles{err: errors.New("timeout")}))

	_, title, err := s.StartStems(context.Background(), "https://example.test/v", "balanced", "rock")
	if err != nil {
		t.Fatalf("StartStems: %v", err)
	}
	if title != "stems" {
		t.Fatalf("fallback title = %q", title)
	}
}

func TestStartStemsRequiresURL(t *testing.T) {
	s := newTestSupervisor(t)
	if _, _, err := s.StartStems(context.Background(), "  ", "fast", "full"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestDownloadMP3Success(t *testing.T) {
	downloader := &fakeDownloader{path: "/home/user/Downloads/Song.mp3"}
	s := newTestSupervisor(t, WithDownloader(downloader))

	filename, title, err := s.DownloadMP3(context.Background(), "https://example.test/v")
	if err != nil {
		t.Fatalf("DownloadMP3: %v", err)
	}
	if filename != "Song.mp3" {
		t.Fatalf("filename = %q", filename)
	}
	if title != "Test Video" {
		t.Fatalf("title = %q", title)
	}

	record := s.Progress(context.Background())
	if record.Stage != jobstate.StageComplete || record.Percent != 100 {
		t.Fatalf("final progress = %+v", record)
	}
}

func TestDownloadMP3FailureWritesErrorProgress(t *testing.T) {
	downloader := &fakeDownloader{err: errors.New("network unreachable")}
	s := newTestSupervisor(t, WithDownloader(downloader))

	if _, _, err := s.DownloadMP3(context.Background(), "https://example.test/v"); err == nil {
		t.Fatal("expected error")
	}
	record := s.Progress(context.Background())
	if record.Stage != jobstate.StageError {
		t.Fatalf("progress stage = %q", record.Stage)
	}
	if record.Error == "" {
		t.Fatal("error text missing from progress")
	}
}

func TestCancelTerminatesAndClears(t *testing.T) {
	var terminated int
	s := newTestSupervisor(t,
		WithAlive(func(int) bool { return true }),
		WithTerminate(func(pid int, _ time.Duration) { terminated = pid }),
		WithSpawn(func(jobstate.Job) (int, error) { return 1234, nil }),
	)

	if _, _, err := s.StartStems(context.Background(), "https://example.test/v", "fast", "full"); err != nil {
		t.Fatalf("StartStems: %v", err)
	}
	msg, err := s.Cancel(context.Background())
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if msg != "Job cancelled" {
		t.Fatalf("message = %q", msg)
	}
	if terminated != 1234 {
		t.Fatalf("terminated pid = %d", terminated)
	}

	// Both records cleared; the system reads as idle again.
	record := s.Progress(context.Background())
	if record.Stage != jobstate.StageIdle {
		t.Fatalf("progress after cancel = %+v", record)
	}
	if s.ActiveJob() != nil {
		t.Fatal("job still registered after cancel")
	}
}

func TestCancelStaleJob(t *testing.T) {
	var terminated int
	s := newTestSupervisor(t,
		WithAlive(func(int) bool { return true }),
		WithTerminate(func(pid int, _ time.Duration) { terminated = pid }),
		WithSpawn(func(jobstate.Job) (int, error) { return 7777, nil }),
	)

	if _, _, err := s.StartStems(context.Background(), "https://example.test/v", "fast", "full"); err != nil {
		t.Fatalf("StartStems: %v", err)
	}

	// Backdate the record past the staleness threshold: the worker wedged
	// without reporting. The stored stage is still in-flight, so cancel
	// tears the job down instead of reporting "no active job".
	old := jobstate.Progress{
		Stage:     jobstate.StageProcessing,
		Message:   "Separating stems...",
		Percent:   42,
		Timestamp: float64(time.Now().Add(-30*time.Minute).UnixMilli()) / 1000,
	}
	payload, err := json.Marshal(old)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.cfg.ProgressFilePath(), payload, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := s.progress.Read().Stage; got != jobstate.StageStale {
		t.Fatalf("stage = %q, want stale", got)
	}

	msg, err := s.Cancel(context.Background())
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if msg != "Job cancelled" {
		t.Fatalf("message = %q", msg)
	}
	if terminated != 7777 {
		t.Fatalf("terminated pid = %d", terminated)
	}
	if record := s.Progress(context.Background()); record.Stage != jobstate.StageIdle {
		t.Fatalf("progress after cancel = %+v", record)
	}
	if s.ActiveJob() != nil {
		t.Fatal("job still registered after cancel")
	}
}

func TestCancelIdempotent(t *testing.T) {
	s := newTestSupervisor(t)
	for i := 0; i < 2; i++ {
		_, err := s.Cancel(context.Background())
		if !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("call %d: expected ErrNotFound, got %v", i+1, err)
		}
	}
	if record := s.Progress(context.Background()); record.Stage != jobstate.StageIdle {
		t.Fatalf("progress = %+v", record)
	}
}

func TestReconcileReapsOrphan(t *testing.T) {
	s := newTestSupervisor(t, WithAlive(func(int) bool { return true }))

	jobID, _, err := s.StartStems(context.Background(), "https://example.test/v", "fast", "full")
	if err != nil {
		t.Fatalf("StartStems: %v", err)
	}

	// Worker dies mid-flight.
	dead := newTestSupervisorSharing(t, s)
	dead.Reconcile(context.Background())

	record := dead.Progress(context.Background())
	if record.Stage != jobstate.StageError {
		t.Fatalf("stage after reap = %q", record.Stage)
	}
	if record.Error != "Previous job was interrupted" {
		t.Fatalf("error = %q", record.Error)
	}
	if record.JobID != jobID {
		t.Fatalf("job ID = %q, want %q", record.JobID, jobID)
	}
	if dead.ActiveJob() != nil {
		t.Fatal("registry not cleared after reap")
	}
}

func TestReconcileLeavesLiveJobAlone(t *testing.T) {
	s := newTestSupervisor(t, WithAlive(func(int) bool { return true }))

	if _, _, err := s.StartStems(context.Background(), "https://example.test/v", "fast", "full"); err != nil {
		t.Fatalf("StartStems: %v", err)
	}
	s.Reconcile(context.Background())

	record := s.Progress(context.Background())
	if record.Stage != jobstate.StageDownloading {
		t.Fatalf("stage = %q after reconcile of live job", record.Stage)
	}
	if s.ActiveJob() == nil {
		t.Fatal("live job lost by reconcile")
	}
}

func TestReconcileIgnoresTerminalState(t *testing.T) {
	s := newTestSupervisor(t, WithAlive(func(int) bool { return true }))

	if _, _, err := s.StartStems(context.Background(), "https://example.test/v", "fast", "full"); err != nil {
		t.Fatalf("StartStems: %v", err)
	}
	// Worker finished and wrote its terminal record, but its registry entry
	// lingers because the process crashed after completion.
	s.progress.Write(jobstate.Progress{Stage: jobstate.StageComplete, Message: "Done", Percent: 100})

	dead := newTestSupervisorSharing(t, s)
	dead.Reconcile(context.Background())

	record := dead.Progress(context.Background())
	if record.Stage != jobstate.StageComplete {
		t.Fatalf("terminal stage overwritten: %+v", record)
	}
	if dead.ActiveJob() != nil {
		t.Fatal("registry not cleared")
	}
}

// newTestSupervisorSharing builds a second supervisor over the same state
// directory, simulating a fresh host process observing prior state, with a
// liveness probe that reports every pid dead.
func newTestSupervisorSharing(t *testing.T, prev *Supervisor) *Supervisor {
	t.Helper()
	s, err := New(prev.cfg, "", nil,
		WithAlive(func(int) bool { return false }),
		WithTerminate(func(int, time.Duration) {}),
		WithSpawn(func(jobstate.Job) (int, error) { return 1, nil }),
		WithTitleResolver(fakeTitles{title: "Test Video"}),
		WithDownloader(&fakeDownloader{path: "/tmp/out.mp3"}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
