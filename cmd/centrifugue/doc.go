// Command centrifugue is the native messaging host for the Centrifugue
// browser extension. Launched with no arguments (as Chrome does) it speaks
// the native messaging protocol on stdin/stdout; subcommands provide a
// terminal surface for status, cancellation, history, and configuration.
package main
