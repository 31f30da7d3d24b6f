//go:build !windows

package updater

import (
	"syscall"
)

// processRunning reports whether a process with the given pid still runs.
func processRunning(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
