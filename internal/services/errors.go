// Package services holds the error taxonomy shared by the supervisor and
// the worker pipeline, plus the external tool clients in its subpackages.
package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExternalTool marks a non-zero exit or I/O failure from yt-dlp,
	// the separation engine, or ffmpeg.
	ErrExternalTool = errors.New("external tool error")
	// ErrNotFound marks an expected file or directory missing after a
	// tool reported success.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks a required tool or setting that is absent.
	ErrConfiguration = errors.New("configuration error")
	// ErrConflict marks a start request while another job is live.
	ErrConflict = errors.New("conflict")
	// ErrTimeout marks an external invocation that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
