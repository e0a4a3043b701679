package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"centrifugue/internal/jobstate"
	"centrifugue/internal/logging"
	"centrifugue/internal/nativemsg"
)

// Handle dispatches one extension request and builds its response. Handler
// errors become error responses, never transport failures.
func (s *Supervisor) Handle(ctx context.Context, req nativemsg.Request) nativemsg.Response {
	switch req.Action {
	case nativemsg.ActionPing:
		return nativemsg.Response{Success: true, Message: "pong"}

	case nativemsg.ActionGetProgress:
		return progressResponse(s.Progress(ctx))

	case nativemsg.ActionDownload, nativemsg.ActionDownloadMP3:
		filename, title, err := s.DownloadMP3(ctx, req.URL)
		if err != nil {
			return nativemsg.Failure(err.Error())
		}
		return nativemsg.Response{
			Success:    true,
			Message:    "Download complete",
			Filename:   filename,
			VideoTitle: title,
		}

	case nativemsg.ActionDownloadStems:
		jobID, title, err := s.StartStems(ctx, req.URL, req.Quality, req.Genre)
		if err != nil {
			resp := nativemsg.Failure(err.Error())
			// Conflicts carry the running job's ID.
			resp.JobID = jobID
			return resp
		}
		return nativemsg.Response{
			Success:    true,
			Message:    "Stem separation started",
			JobID:      jobID,
			VideoTitle: title,
		}

	case nativemsg.ActionCancelJob:
		msg, err := s.Cancel(ctx)
		if err != nil {
			return nativemsg.Failure(err.Error())
		}
		return nativemsg.Response{Success: true, Message: msg}

	default:
		return nativemsg.Failure(fmt.Sprintf("unknown action: %s", req.Action))
	}
}

func progressResponse(record jobstate.Progress) nativemsg.Response {
	percent := record.Percent
	resp := nativemsg.Response{
		Success:    true,
		Stage:      string(record.Stage),
		Percent:    &percent,
		Message:    record.Message,
		VideoTitle: record.VideoTitle,
		JobID:      record.JobID,
		Action:     record.Action,
		Quality:    record.Quality,
		Genre:      record.Genre,
		Error:      record.Error,
	}
	if record.EstimatedSeconds != nil {
		estimated := *record.EstimatedSeconds
		resp.EstimatedSeconds = &estimated
	}
	if record.Timestamp != 0 {
		timestamp := record.Timestamp
		resp.Timestamp = &timestamp
	}
	return resp
}

// Serve reads extension requests from r until EOF and writes one response
// per request to w. Malformed frames terminate the loop; Chrome tears the
// pipe down on protocol errors anyway.
func (s *Supervisor) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.Reconcile(ctx)
	for {
		var req nativemsg.Request
		if err := nativemsg.Read(r, &req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}
		s.logger.Debug("request received", slog.String("action", req.Action))

		resp := s.Handle(ctx, req)
		if !resp.Success {
			s.logger.Warn("request failed",
				slog.String("action", req.Action),
				logging.String("reason", resp.Error))
		}
		if err := nativemsg.Write(w, resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}
