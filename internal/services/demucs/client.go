package demucs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"centrifugue/internal/presets"
	"centrifugue/internal/services"
)

// progressPattern matches the tqdm progress bar demucs writes to stderr,
// e.g. " 42%|████      | ...". Only the leading percentage matters.
var progressPattern = regexp.MustCompile(`(\d+)%\|`)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStderr func(string)) error
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

// Client wraps demucs invocations for stem separation.
type Client struct {
	binary     string
	device     string
	mp3Bitrate int
	exec       Executor
}

// New constructs a demucs client. Device may be empty for auto-detect.
func New(binary, device string, mp3Bitrate int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("demucs binary required")
	}
	if mp3Bitrate <= 0 {
		mp3Bitrate = 320
	}
	client := &Client{
		binary:     binary,
		device:     strings.TrimSpace(device),
		mp3Bitrate: mp3Bitrate,
		exec:       commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Separate runs demucs on input, writing MP3 stems under outDir. Engine
// progress percentages (0-100) are reported through onPercent; repeated or
// regressing values are suppressed so callers see a strictly increasing
// sequence.
func (c *Client) Separate(ctx context.Context, input, outDir string, quality presets.Quality, onPercent func(int)) error {
	args := []string{
		"-n", quality.Model,
		"-o", outDir,
		"--overlap", strconv.FormatFloat(quality.Overlap, 'f', -1, 64),
		"--mp3",
		"--mp3-bitrate", strconv.Itoa(c.mp3Bitrate),
	}
	if c.device != "" {
		args = append(args, "-d", c.device)
	}
	if quality.Shifts > 0 {
		args = append(args, "--shifts", strconv.Itoa(quality.Shifts))
	}
	args = append(args, input)

	lastPercent := -1
	diag := make([]string, 0, 20)
	err := c.exec.Run(ctx, c.binary, args, func(line string) {
		if percent, ok := parsePercent(line); ok {
			if percent > lastPercent && onPercent != nil {
				lastPercent = percent
				onPercent(percent)
			}
			return
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			diag = append(diag, trimmed)
			if len(diag) > 20 {
				diag = diag[len(diag)-20:]
			}
		}
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return services.Wrap(services.ErrExternalTool, "demucs", "separate", "separation cancelled", ctx.Err())
		}
		return services.Wrap(services.ErrExternalTool, "demucs", "separate", strings.Join(diag, "; "), err)
	}
	return nil
}

// LocateStems finds the directory containing the separated stem files.
// Demucs writes to <outDir>/<model>/<track>/; when that layout is absent
// the first subdirectory containing MP3 files wins.
func LocateStems(outDir, model, trackName string) (string, error) {
	expected := filepath.Join(outDir, model, trackName)
	if hasMP3(expected) {
		return expected, nil
	}

	var found string
	_ = filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || found != "" {
			return filepath.SkipAll
		}
		if d.IsDir() && hasMP3(path) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if found == "" {
		return "", services.Wrap(services.ErrNotFound, "demucs", "locate-stems", fmt.Sprintf("no stem files under %s", outDir), nil)
	}
	return found, nil
}

func hasMP3(dir string) bool {
	matches, err := filepath.Glob(filepath.Join(dir, "*.mp3"))
	return err == nil && len(matches) > 0
}

func parsePercent(line string) (int, bool) {
	match := progressPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	percent, err := strconv.Atoi(match[1])
	if err != nil || percent < 0 || percent > 100 {
		return 0, false
	}
	return percent, true
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStderr func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		// tqdm redraws with carriage returns; split on CR as well as LF so
		// progress updates surface as individual lines.
		scanner.Split(scanCRLF)
		for scanner.Scan() {
			if onStderr != nil {
				onStderr(scanner.Text())
			}
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}

func scanCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
