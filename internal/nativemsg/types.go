package nativemsg

// Actions understood by the host.
const (
	ActionDownload      = "download" // legacy alias for download_mp3
	ActionDownloadMP3   = "download_mp3"
	ActionDownloadStems = "download_stems"
	ActionGetProgress   = "get_progress"
	ActionCancelJob     = "cancel_job"
	ActionPing          = "ping"
)

// Request is a message from the browser extension.
type Request struct {
	Action  string `json:"action"`
	URL     string `json:"url,omitempty"`
	Quality string `json:"quality,omitempty"`
	Genre   string `json:"genre,omitempty"`
}

// Response is a message back to the extension. Every response carries
// Success; the remaining fields are action-specific. Progress responses
// additionally embed the full progress record.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`

	Filename   string `json:"filename,omitempty"`
	JobID      string `json:"job_id,omitempty"`
	VideoTitle string `json:"video_title,omitempty"`

	Stage            string   `json:"stage,omitempty"`
	Percent          *int     `json:"percent,omitempty"`
	EstimatedSeconds *int     `json:"estimated_seconds,omitempty"`
	Action           string   `json:"action,omitempty"`
	Quality          string   `json:"quality,omitempty"`
	Genre            string   `json:"genre,omitempty"`
	Timestamp        *float64 `json:"timestamp,omitempty"`
}

// Failure builds an unsuccessful response with the given error text.
func Failure(errText string) Response {
	return Response{Success: false, Error: errText}
}
