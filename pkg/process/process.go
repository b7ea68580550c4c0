// Package process inspects other processes on Unix-like systems.
package process

import (
	"os"
	"syscall"
)

// IsAlive reports whether a process with the given PID exists. A process
// owned by another user still counts as alive.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 probes for existence: ESRCH means gone, EPERM means alive.
	err = p.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}
