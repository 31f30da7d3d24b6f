// Package updater implements the detached self-update helper. The main
// application downloads a new release executable, spawns this helper and
// exits; the helper waits for that process to end, swaps the executable and
// optionally restarts it.
package updater

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	replaceAttempts = 10
	replaceInterval = 500 * time.Millisecond
	waitInterval    = 200 * time.Millisecond
)

// Options is the helper's command line contract.
type Options struct {
	// Target is the executable to replace.
	Target string
	// New is the freshly downloaded executable.
	New string
	// WaitPID is the process that must exit before the swap; 0 skips the
	// wait.
	WaitPID int
	// Restart starts the replaced executable afterwards.
	Restart bool
	// Timeout bounds the wait for WaitPID.
	Timeout time.Duration
}

// Run performs the update.
func Run(opts Options) error {
	if opts.Target == "" || opts.New == "" {
		return fmt.Errorf("both --target and --new are required")
	}
	if _, err := os.Stat(opts.New); err != nil {
		return fmt.Errorf("new executable not found: %s", opts.New)
	}
	if opts.WaitPID > 0 {
		log.Printf("Waiting for process %d to exit", opts.WaitPID)
		if !waitForExit(opts.WaitPID, opts.Timeout) {
			log.Printf("Process %d still running after %s, replacing anyway", opts.WaitPID, opts.Timeout)
		}
	}
	if err := replaceFile(opts.Target, opts.New); err != nil {
		return err
	}
	log.Printf("Replaced %s", opts.Target)
	if opts.Restart {
		log.Printf("Restarting %s", opts.Target)
		cmd := exec.Command(opts.Target)
		cmd.Dir = filepath.Dir(opts.Target)
		return cmd.Start()
	}
	return nil
}

// waitForExit polls until the process is gone or the timeout elapses.
func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processRunning(pid) {
			return true
		}
		time.Sleep(waitInterval)
	}
	return !processRunning(pid)
}

// replaceFile copies new over target. The old executable may still be
// locked for a moment after its process exits, so removal is retried.
func replaceFile(target, new string) error {
	var err error
	for attempt := 0; attempt < replaceAttempts; attempt++ {
		if err = os.Remove(target); err == nil || os.IsNotExist(err) {
			break
		}
		time.Sleep(replaceInterval)
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing old executable: %w", err)
	}
	in, err := os.Open(new)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
