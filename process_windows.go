//go:build windows

package psadiag

import "log"

// killProcessesByName force-terminates every process matching one of the
// given image names and returns how many taskkill accepted.
func killProcessesByName(names []string) int {
	killed := 0
	for _, name := range names {
		if err := execCommand("taskkill", "/F", "/IM", name).Run(); err == nil {
			log.Printf("Terminated process: %s", name)
			killed++
		}
	}
	return killed
}
