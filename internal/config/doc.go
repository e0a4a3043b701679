// Package config loads, normalizes, and validates the TOML configuration
// shared by the native-messaging host, the worker process, and the CLI.
package config
