// Package ffprobe probes media files for container metadata. The pipeline
// only needs the audio duration, which feeds the separation time estimate.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const probeTimeout = 30 * time.Second

type result struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// DurationSeconds returns the container duration of path in seconds.
// Failures return an error; callers treat the probe as best-effort and fall
// back to canned estimates.
func DurationSeconds(ctx context.Context, binary, path string) (float64, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, errors.New("ffprobe: empty path")
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, binary, "-v", "error", "-show_entries", "format=duration", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var parsed result
	if err := json.Unmarshal(output, &parsed); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil || duration <= 0 {
		return 0, fmt.Errorf("ffprobe: no duration for %s", path)
	}
	return duration, nil
}
