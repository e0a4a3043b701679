// Package procs provides the OS-process primitives the supervisor relies
// on: spawning a fully detached worker, checking liveness by pid, and
// best-effort termination with a grace period.
//
// The relationship to a spawned worker is deliberately a weak reference: the
// parent records only the pid and never holds an ownership handle, because
// the worker must outlive the short-lived host process. A pid can in theory
// be recycled by the kernel between worker exit and the next liveness check;
// that race is an accepted limitation of the single-desktop deployment.
package procs

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// SpawnDetached starts bin with args in a new session with no inherited
// standard streams and returns its pid. The caller gets no handle; the
// process is released immediately and is not waited on.
func SpawnDetached(bin string, args ...string) (int, error) {
	cmd := exec.Command(bin, args...)
	// Nil stdio connects the child to the null device. A new session
	// detaches it from the host's controlling terminal and process group,
	// so it survives the host exiting or being reinvoked.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn detached %s: %w", bin, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release process handle: %w", err)
	}
	return pid, nil
}

// Alive reports whether a process with the given pid exists. Signal 0 probes
// existence without delivering anything; EPERM still means the process is
// there, just owned by someone else.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}

// Terminate sends SIGTERM to pid, waits up to grace for it to exit, then
// escalates to SIGKILL. Signaling a nonexistent process is not an error;
// cancellation must be idempotent.
func Terminate(pid int, grace time.Duration) {
	if pid <= 0 {
		return
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !Alive(pid) {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	_ = unix.Kill(pid, unix.SIGKILL)
}
