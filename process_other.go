//go:build !windows

package psadiag

// killProcessesByName is a no-op outside Windows; the processes it targets
// only exist there.
func killProcessesByName(names []string) int {
	return 0
}
