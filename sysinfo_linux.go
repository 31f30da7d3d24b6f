//go:build linux

package psadiag

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func osTotalRAM() int64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return int64(info.Totalram) * int64(info.Unit)
}

func osName() string {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return "Linux"
	}
	return fmt.Sprintf("%s %s", unixString(uname.Sysname[:]), unixString(uname.Release[:]))
}

func unixString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
