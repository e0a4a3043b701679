// Package presets maps the quality and genre names the extension sends to
// concrete separation-engine parameters and output layouts.
package presets

import "strings"

// Quality describes one separation quality preset.
type Quality struct {
	Name string
	// Model is the engine model name passed via -n.
	Model string
	// Shifts is the random-shift count; 0 omits the flag.
	Shifts int
	// Overlap is the window overlap factor.
	Overlap float64
	// TimeMultiplier estimates processing seconds per second of audio.
	TimeMultiplier float64
	// FallbackEstimateSeconds is used when the audio duration is unknown.
	FallbackEstimateSeconds int
	// FolderSuffix is appended to the output folder name.
	FolderSuffix string
	Description  string
}

// Genre describes which stems a genre mode emits.
type Genre struct {
	Name string
	// Stems are copied individually from the engine output.
	Stems []string
	// Combine maps a combined-track name to the stems mixed into it.
	Combine map[string][]string
	// FolderSuffix names the output folder ("Stems", "Hip Hop", ...).
	FolderSuffix string
	Description  string
}

var qualities = map[string]Quality{
	"fast": {
		Name:                    "fast",
		Model:                   "htdemucs",
		Shifts:                  0,
		Overlap:                 0.25,
		TimeMultiplier:          0.4,
		FallbackEstimateSeconds: 90,
		FolderSuffix:            "",
		Description:             "Fast processing, basic quality",
	},
	"balanced": {
		Name:                    "balanced",
		Model:                   "htdemucs",
		Shifts:                  5,
		Overlap:                 0.5,
		TimeMultiplier:          1.2,
		FallbackEstimateSeconds: 300,
		FolderSuffix:            " (HQ)",
		Description:             "Good balance of speed and quality",
	},
	"high": {
		Name:                    "high",
		Model:                   "htdemucs_ft",
		Shifts:                  10,
		Overlap:                 0.75,
		TimeMultiplier:          2.5,
		FallbackEstimateSeconds: 600,
		FolderSuffix:            " (Ultra)",
		Description:             "Best quality, minimal stem bleeding",
	},
}

var genres = map[string]Genre{
	"full": {
		Name:         "full",
		Stems:        []string{"vocals", "drums", "bass", "other"},
		FolderSuffix: "Stems",
		Description:  "All 4 stems",
	},
	"hiphop": {
		Name:         "hiphop",
		Stems:        []string{"vocals"},
		Combine:      map[string][]string{"beat": {"drums", "bass", "other"}},
		FolderSuffix: "Hip Hop",
		Description:  "Vocals + Beat",
	},
	"rock": {
		Name:         "rock",
		Stems:        []string{"vocals", "drums", "bass"},
		FolderSuffix: "Rock",
		Description:  "Vocals, Drums, Bass",
	},
}

// stemNames maps engine stem file names to display names used in output
// filenames.
var stemNames = map[string]string{
	"vocals": "Vocals",
	"drums":  "Drums",
	"bass":   "Bass",
	"other":  "Other",
}

// DefaultFallbackEstimateSeconds is reported when both the quality name and
// the audio duration are unknown; see EstimateSecondsFor.
const DefaultFallbackEstimateSeconds = 120

// QualityByName resolves a quality preset, falling back to "fast" for
// unknown names so a stale extension can never wedge a job start.
func QualityByName(name string) Quality {
	if q, ok := qualities[strings.ToLower(strings.TrimSpace(name))]; ok {
		return q
	}
	return qualities["fast"]
}

// GenreByName resolves a genre mode, falling back to "full".
func GenreByName(name string) Genre {
	if g, ok := genres[strings.ToLower(strings.TrimSpace(name))]; ok {
		return g
	}
	return genres["full"]
}

// StemDisplayName returns the output filename label for an engine stem, or
// false for stems no mode uses.
func StemDisplayName(stem string) (string, bool) {
	name, ok := stemNames[strings.ToLower(strings.TrimSpace(stem))]
	return name, ok
}

// EstimateSeconds computes the expected separation duration for a clip of
// audioSeconds using the preset's multiplier, plus fixed startup overhead.
// Non-positive durations fall back to the preset's canned estimate.
func (q Quality) EstimateSeconds(audioSeconds float64) int {
	if audioSeconds <= 0 {
		return q.FallbackEstimateSeconds
	}
	return int(audioSeconds*q.TimeMultiplier) + 30
}

// EstimateSecondsFor resolves the estimate for the quality name as the
// extension sent it. An unrecognized name still runs under the "fast" preset,
// but its canned estimate is DefaultFallbackEstimateSeconds rather than
// fast's, since nothing is known about the requested settings.
func EstimateSecondsFor(name string, audioSeconds float64) int {
	if q, ok := qualities[strings.ToLower(strings.TrimSpace(name))]; ok {
		return q.EstimateSeconds(audioSeconds)
	}
	if audioSeconds <= 0 {
		return DefaultFallbackEstimateSeconds
	}
	return QualityByName(name).EstimateSeconds(audioSeconds)
}
