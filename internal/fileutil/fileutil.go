// Package fileutil provides small filesystem helpers used by the worker
// pipeline when organizing stem output and tearing down workspaces.
package fileutil

import (
	"io"
	"os"
)

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// RemoveDirQuiet removes a directory tree, ignoring every error. Workspace
// teardown runs on all exit paths and must never mask the original failure.
func RemoveDirQuiet(dir string) {
	if dir == "" {
		return
	}
	_ = os.RemoveAll(dir)
}
