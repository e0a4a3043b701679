package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"centrifugue/internal/services"
)

// Executor abstracts command execution for testability. Stdout and stderr
// lines are forwarded separately so callers can distinguish results from
// diagnostics.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps yt-dlp invocations.
type Client struct {
	binary          string
	titleTimeout    time.Duration
	downloadTimeout time.Duration
	exec            Executor
}

// New constructs a yt-dlp client. Timeouts are in seconds; non-positive
// values get the historical defaults (30s title, 300s download).
func New(binary string, titleTimeoutSeconds, downloadTimeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	if titleTimeoutSeconds <= 0 {
		titleTimeoutSeconds = 30
	}
	if downloadTimeoutSeconds <= 0 {
		downloadTimeoutSeconds = 300
	}
	client := &Client{
		binary:          binary,
		titleTimeout:    time.Duration(titleTimeoutSeconds) * time.Second,
		downloadTimeout: time.Duration(downloadTimeoutSeconds) * time.Second,
		exec:            commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Title resolves the video title for url. Best-effort; callers fall back to
// a placeholder on error and never block job start on a failure here.
func (c *Client) Title(ctx context.Context, url string) (string, error) {
	titleCtx, cancel := context.WithTimeout(ctx, c.titleTimeout)
	defer cancel()

	var title string
	diag := newTail(8)
	err := c.exec.Run(titleCtx, c.binary, []string{"--get-title", "--no-playlist", url},
		func(line string) {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				title = trimmed
			}
		},
		diag.add,
	)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "yt-dlp", "title", diag.String(), err)
	}
	if title == "" {
		return "", services.Wrap(services.ErrExternalTool, "yt-dlp", "title", "empty title output", nil)
	}
	return title, nil
}

// DownloadMP3 downloads url as a best-quality MP3 using the given output
// template and returns the final file path yt-dlp reports.
func (c *Client) DownloadMP3(ctx context.Context, url, outputTemplate string) (string, error) {
	dlCtx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--output", outputTemplate,
		"--no-playlist",
		"--print", "after_move:filepath",
		url,
	}

	var lastLine string
	diag := newTail(20)
	err := c.exec.Run(dlCtx, c.binary, args,
		func(line string) {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lastLine = trimmed
			}
		},
		diag.add,
	)
	if err != nil {
		if errors.Is(dlCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "yt-dlp", "download", "download timed out", err)
		}
		return "", services.Wrap(services.ErrExternalTool, "yt-dlp", "download", diag.String(), err)
	}
	if lastLine == "" {
		return "", services.Wrap(services.ErrExternalTool, "yt-dlp", "download", "no output path reported", nil)
	}
	return lastLine, nil
}

// DownloadAudio downloads url into outputPath, extracting audio in the
// requested format (e.g. "wav" for separation input).
func (c *Client) DownloadAudio(ctx context.Context, url, outputPath, format string) error {
	dlCtx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	args := []string{
		"--extract-audio",
		"--audio-format", format,
		"--audio-quality", "0",
		"--output", outputPath,
		"--no-playlist",
		url,
	}

	diag := newTail(20)
	err := c.exec.Run(dlCtx, c.binary, args, nil, diag.add)
	if err != nil {
		if errors.Is(dlCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "yt-dlp", "download", "download timed out", err)
		}
		return services.Wrap(services.ErrExternalTool, "yt-dlp", "download", diag.String(), err)
	}
	return nil
}

// tail keeps the last n non-empty lines for error diagnostics.
type tail struct {
	limit int
	lines []string
}

func newTail(limit int) *tail {
	return &tail{limit: limit}
}

func (t *tail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *tail) String() string {
	return strings.Join(t.lines, "; ")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if forward != nil {
				forward(scanner.Text())
			}
		}
	}

	wg.Add(2)
	go scan(stdout, onStdout)
	go scan(stderr, onStderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
