//go:build darwin

package psadiag

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func osTotalRAM() int64 {
	mem, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0
	}
	return int64(mem)
}

func osName() string {
	release, err := unix.Sysctl("kern.osrelease")
	if err != nil {
		return "Darwin"
	}
	return fmt.Sprintf("Darwin %s", release)
}
