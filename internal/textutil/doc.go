// Package textutil provides filename sanitization helpers shared by the
// worker pipeline and CLI output.
package textutil
