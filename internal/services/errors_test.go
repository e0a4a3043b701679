package services_test

import (
	"errors"
	"testing"

	"centrifugue/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	inner := errors.New("exit status 1")
	err := services.Wrap(services.ErrExternalTool, "demucs", "separate", "engine failed", inner)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatal("expected ErrExternalTool marker")
	}
	if !errors.Is(err, inner) {
		t.Fatal("expected inner error preserved")
	}
	want := "external tool error: demucs: separate: engine failed: exit status 1"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestWrapDefaultsMarkerAndDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatal("expected default marker")
	}
	if err.Error() != "external tool error: service failure" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
