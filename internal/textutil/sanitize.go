package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxFileNameRunes caps sanitized names so destination folders stay well under
// common filesystem limits even after suffixes are appended.
const maxFileNameRunes = 100

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName normalizes a title into a filesystem-safe name. Input is
// NFC-normalized, unsafe characters are replaced or dropped, runs of
// whitespace collapse to a single space, and the result is capped at 100
// runes. Empty results fall back to "download" so callers always get a
// usable name.
func SanitizeFileName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = fileNameReplacer.Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if runes := []rune(name); len(runes) > maxFileNameRunes {
		name = strings.TrimSpace(string(runes[:maxFileNameRunes]))
	}
	if name == "" {
		return "download"
	}
	return name
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
