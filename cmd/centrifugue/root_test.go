package main

import (
	"testing"
)

// Chrome invokes the host as `centrifugue chrome-extension://<id>/`. The
// origin must route to the root serve loop, not be rejected as an unknown
// subcommand.
func TestRootAcceptsExtensionOrigin(t *testing.T) {
	root := newRootCommand()

	cmd, args, err := root.Find([]string{"chrome-extension://abcdefghijklmnop/"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if cmd != root {
		t.Fatalf("origin resolved to %q, want root command", cmd.Name())
	}
	if err := cmd.ValidateArgs(args); err != nil {
		t.Fatalf("origin rejected: %v", err)
	}
}

func TestRootStillRoutesSubcommands(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"status", "cancel", "history", "check", "worker"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil {
			t.Fatalf("find %s: %v", name, err)
		}
		if cmd == root {
			t.Fatalf("%s no longer resolves to its subcommand", name)
		}
	}
}
