// Package deps resolves and reports the external tools the pipeline drives:
// yt-dlp, the demucs separation engine, ffmpeg, and ffprobe.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"centrifugue/internal/config"
)

// wellKnownDirs are probed after PATH; browser-launched hosts inherit a
// minimal environment that often misses the Homebrew prefix.
var wellKnownDirs = []string{
	"/opt/homebrew/bin",
	"/usr/local/bin",
	"/usr/bin",
}

// Requirement defines an external dependency Centrifugue relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Resolve returns the executable path for name. An explicit override wins;
// otherwise PATH is consulted, then the well-known install directories. The
// bare name is returned as a last resort so error messages stay meaningful.
func Resolve(name, override string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	for _, dir := range wellKnownDirs {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode().Perm()&0o111 != 0 {
			return candidate
		}
	}
	return name
}

// DefaultRequirements lists the toolchain for the configured setup.
func DefaultRequirements(cfg *config.Config) []Requirement {
	var tools config.Tools
	if cfg != nil {
		tools = cfg.Tools
	}
	return []Requirement{
		{Name: "yt-dlp", Command: Resolve("yt-dlp", tools.YtDlp), Description: "Audio download"},
		{Name: "demucs", Command: Resolve("demucs", tools.Demucs), Description: "Stem separation engine"},
		{Name: "ffmpeg", Command: Resolve("ffmpeg", tools.FFmpeg), Description: "Stem mixing"},
		{Name: "ffprobe", Command: Resolve("ffprobe", tools.FFprobe), Description: "Duration probing", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if !available(cmd) {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

func available(cmd string) bool {
	if filepath.IsAbs(cmd) {
		info, err := os.Stat(cmd)
		return err == nil && !info.IsDir() && info.Mode().Perm()&0o111 != 0
	}
	_, err := exec.LookPath(cmd)
	return err == nil
}
