package textutil_test

import (
	"strings"
	"testing"

	"centrifugue/internal/textutil"
)

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "My Song", "My Song"},
		{"unsafe chars", `AC/DC: Back <In> Black?`, "AC-DC- Back In Black"},
		{"pipes and quotes", `a|b"c*d`, "abc-d"},
		{"whitespace collapse", "  too   many \t spaces ", "too many spaces"},
		{"empty", "", "download"},
		{"only unsafe", `?"<>|`, "download"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.SanitizeFileName(tc.input); got != tc.expected {
				t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestSanitizeFileNameCapsLength(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := textutil.SanitizeFileName(long)
	if len([]rune(got)) != 100 {
		t.Fatalf("expected 100 runes, got %d", len([]rune(got)))
	}
}

func TestSanitizeToken(t *testing.T) {
	cases := map[string]string{
		"Hip Hop":  "hip_hop",
		"fast":     "fast",
		"":         "unknown",
		"--__--":   "unknown",
		"Rock-123": "rock-123",
	}
	for input, expected := range cases {
		if got := textutil.SanitizeToken(input); got != expected {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", input, got, expected)
		}
	}
}
