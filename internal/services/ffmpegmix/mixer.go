package ffmpegmix

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"centrifugue/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures the mixer.
type Option func(*Mixer)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(m *Mixer) {
		if exec != nil {
			m.exec = exec
		}
	}
}

// Mixer combines stem files into a single MP3 via ffmpeg's amix filter.
type Mixer struct {
	binary  string
	bitrate int
	timeout time.Duration
	exec    Executor
}

// New constructs a mixer. Non-positive values get defaults (320 kbps, 120s).
func New(binary string, bitrate, timeoutSeconds int, opts ...Option) (*Mixer, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	if bitrate <= 0 {
		bitrate = 320
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 120
	}
	mixer := &Mixer{
		binary:  binary,
		bitrate: bitrate,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(mixer)
	}
	return mixer, nil
}

// Mix overlays the input files into output. At least one input is required;
// a single input is still passed through amix so loudness handling matches
// the multi-stem case.
func (m *Mixer) Mix(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return services.Wrap(services.ErrConfiguration, "ffmpeg", "mix", "no input files", nil)
	}

	mixCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	args := []string{"-y"}
	for _, input := range inputs {
		args = append(args, "-i", input)
	}
	args = append(args,
		"-filter_complex", fmt.Sprintf("amix=inputs=%d:duration=longest", len(inputs)),
		"-codec:a", "libmp3lame",
		"-b:a", strconv.Itoa(m.bitrate)+"k",
		output,
	)

	combined, err := m.exec.Run(mixCtx, m.binary, args)
	if err != nil {
		if errors.Is(mixCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "ffmpeg", "mix", "mix timed out", err)
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "mix", lastLines(combined, 6), err)
	}
	return nil
}

// lastLines keeps the tail of ffmpeg's output for diagnostics; the full
// banner is noise.
func lastLines(output []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
