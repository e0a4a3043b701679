// Package logging wraps log/slog with the project's console and JSON
// handlers, shared attribute keys, and log-file retention.
//
// The native-messaging host owns stdout for the wire protocol, so every
// logger in this repository writes to stderr or to files only.
package logging
