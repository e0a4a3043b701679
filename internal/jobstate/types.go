package jobstate

// Stage identifies where a job is in its lifecycle. Within one job the
// stored stage only ever moves forward through the order below; StageStale
// is a read-time reinterpretation and is never written.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageDownloading Stage = "downloading"
	StageProcessing  Stage = "processing"
	StageFinalizing  Stage = "finalizing"
	StageComplete    Stage = "complete"
	StageError       Stage = "error"
	StageStale       Stage = "stale"
)

// InFlight reports whether the stage describes a job that is still running.
func (s Stage) InFlight() bool {
	switch s {
	case StageDownloading, StageProcessing, StageFinalizing:
		return true
	}
	return false
}

// Terminal reports whether the stage is a final outcome.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// Rank returns the position of the stage in the forward lifecycle order,
// with complete and error sharing the terminal rank. Used to assert that
// observed stages never regress.
func (s Stage) Rank() int {
	switch s {
	case StageIdle:
		return 0
	case StageDownloading:
		return 1
	case StageProcessing:
		return 2
	case StageFinalizing:
		return 3
	case StageComplete, StageError:
		return 4
	default:
		return -1
	}
}

// Progress is the singleton user-facing status record, overwritten on every
// state change and read by polling.
type Progress struct {
	Stage            Stage   `json:"stage"`
	Message          string  `json:"message"`
	Percent          int     `json:"percent"`
	EstimatedSeconds *int    `json:"estimated_seconds,omitempty"`
	VideoTitle       string  `json:"video_title,omitempty"`
	JobID            string  `json:"job_id,omitempty"`
	Action           string  `json:"action,omitempty"`
	Quality          string  `json:"quality,omitempty"`
	Genre            string  `json:"genre,omitempty"`
	Error            string  `json:"error,omitempty"`
	Timestamp        float64 `json:"timestamp"`
}

// Job is the singleton registry record identifying the active worker. It is
// the source of truth for liveness; Progress is the source of truth for
// user-facing status.
type Job struct {
	JobID     string  `json:"job_id"`
	PID       int     `json:"pid"`
	Workspace string  `json:"workspace,omitempty"`
	Title     string  `json:"title"`
	Action    string  `json:"action"`
	Quality   string  `json:"quality"`
	Genre     string  `json:"genre"`
	URL       string  `json:"url"`
	StartedAt float64 `json:"started_at"`
}
