package psadiag

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// execCommand is swapped out in tests.
var execCommand = exec.Command

const (
	verifyAttempts = 6
	verifyInterval = 500 * time.Millisecond
)

// InstallCallbacks receive progress and sub-step results during a Diagbox
// installation. All fields are optional.
type InstallCallbacks struct {
	Progress        func(percent int, file string)
	DefenderDone    func(ok bool, message string)
	DriverDone      func(ok bool, message string)
	RuntimesStarted func()
	RuntimesDone    func(ok bool, message string)
}

func (cb *InstallCallbacks) fill() {
	if cb.Progress == nil {
		cb.Progress = func(int, string) {}
	}
	if cb.DefenderDone == nil {
		cb.DefenderDone = func(bool, string) {}
	}
	if cb.DriverDone == nil {
		cb.DriverDone = func(bool, string) {}
	}
	if cb.RuntimesStarted == nil {
		cb.RuntimesStarted = func() {}
	}
	if cb.RuntimesDone == nil {
		cb.RuntimesDone = func(bool, string) {}
	}
}

// DiagboxInstaller extracts a downloaded release archive onto the system
// drive and runs the driver and runtimes sub-installers afterwards.
// Extraction failures are fatal; sub-installer problems only produce
// warnings.
type DiagboxInstaller struct {
	Archive   string
	Callbacks InstallCallbacks

	cfg *Config
	tr  *Translator

	mu      sync.Mutex
	current *exec.Cmd
	stopped bool
}

func NewDiagboxInstaller(cfg *Config, tr *Translator, archive string) *DiagboxInstaller {
	return &DiagboxInstaller{Archive: archive, cfg: cfg, tr: tr}
}

// Stop terminates a running extraction process.
func (di *DiagboxInstaller) Stop() {
	di.mu.Lock()
	defer di.mu.Unlock()
	di.stopped = true
	if di.current != nil && di.current.Process != nil {
		di.current.Process.Kill()
	}
}

// Run performs the installation. The returned message is translated and
// suitable for display; warnings describe non-fatal sub-step problems.
func (di *DiagboxInstaller) Run() (message string, warnings []string, err error) {
	di.Callbacks.fill()
	log.Printf("Starting installation from: %s", di.Archive)
	var extractionErrors []string

	// Defender exclusions must exist before files land on disk.
	di.addDefenderExclusions()

	candidates := sevenZipCandidates()
	if len(candidates) == 0 {
		log.Println("No 7za executable found (checked bundled tools and PATH)")
		return "", nil, errors.New("7za executable not found")
	}
	log.Printf("Starting extraction using candidates: %v", candidates)
	di.Callbacks.Progress(0, "")

	extracted := false
	var lastErrors []string
	for _, exe := range candidates {
		log.Printf("Attempting extraction with: %s", exe)
		extractErr := di.runExtraction(exe)
		if extractErr == nil {
			log.Printf("Extraction succeeded with: %s", exe)
			extracted = true
			break
		}
		log.Printf("Extraction failed with %s: %s", exe, extractErr)
		lastErrors = append(lastErrors, fmt.Sprintf("%s: %s", exe, extractErr))
	}
	if !extracted {
		switch {
		case containsPermissionError(lastErrors):
			extractionErrors = append(extractionErrors, "Some files skipped due to permission errors")
		case len(lastErrors) > 0:
			if len(lastErrors) > 3 {
				lastErrors = lastErrors[:3]
			}
			extractionErrors = append(extractionErrors, "7z extraction failed: "+strings.Join(lastErrors, " | "))
		default:
			extractionErrors = append(extractionErrors, "Unknown extraction failure")
		}
	}
	di.Callbacks.Progress(100, "")

	// The expected install artifacts must exist, even when 7z reported
	// success.
	if extracted && !di.verifyExtraction() {
		log.Println("Post-extraction verification failed: expected files not found")
		extracted = false
		extractionErrors = append(extractionErrors, "Extraction incomplete or interrupted: expected files missing")
	}

	di.installDriver()
	warnings = append(warnings, di.installRuntimes()...)

	if len(extractionErrors) > 0 {
		summary := strings.Join(append(extractionErrors, warnings...), "\n")
		log.Printf("Installation failed due to extraction errors: %s", summary)
		return "", warnings, errors.New(di.tr.Tr("messages.install.failed", StringMap{"error": summary}))
	}
	if len(warnings) > 0 {
		summary := strings.Join(warnings, "\n")
		log.Printf("Installation completed with warnings: %s", summary)
		return di.tr.Tr("messages.install.warnings", StringMap{"warnings": summary}), warnings, nil
	}
	log.Printf("Diagbox installed successfully to %s", di.cfg.ExtractTarget)
	return di.tr.Get("messages.install.success"), nil, nil
}

// sevenZipCandidates lists the 7-Zip executables to try: the bundled copy
// next to the running executable first, then whatever PATH offers.
func sevenZipCandidates() []string {
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exe), "tools", "7za.exe")
		if _, err := os.Stat(bundled); err == nil {
			candidates = append(candidates, bundled)
		}
	}
	if path, err := exec.LookPath("7za"); err == nil {
		candidates = append(candidates, path)
	}
	return candidates
}

func (di *DiagboxInstaller) runExtraction(exe string) error {
	args := []string{"x", di.Archive, "-o" + di.cfg.ExtractTarget, "-y", "-bsp1"}
	if di.cfg.ArchivePassword != "" {
		args = append(args, "-p"+di.cfg.ArchivePassword)
	}
	cmd := execCommand(exe, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	di.mu.Lock()
	if di.stopped {
		di.mu.Unlock()
		return errors.New("installation stopped")
	}
	if err = cmd.Start(); err != nil {
		di.mu.Unlock()
		return err
	}
	di.current = cmd
	di.mu.Unlock()

	var output strings.Builder
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		output.WriteString(line)
		output.WriteByte('\n')
		if percent, file, ok := parse7zProgress(line); ok {
			di.Callbacks.Progress(percent, file)
		}
	}
	waitErr := cmd.Wait()

	di.mu.Lock()
	di.current = nil
	di.mu.Unlock()

	combined := output.String() + "\n" + stderr.String()
	if waitErr != nil {
		return fmt.Errorf("%w: %s", waitErr, truncate(stderr.String(), 400))
	}
	// 7z exits zero on some corrupt inputs but says so on stdout.
	if strings.Contains(combined, "Can't open as archive") {
		return errors.New("archive could not be opened")
	}
	return nil
}

// parse7zProgress extracts percentage and filename from 7z's -bsp1 status
// lines ("42% 2909 - some/file").
func parse7zProgress(line string) (percent int, file string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.Contains(line, "%") || !strings.Contains(line, " - ") {
		return 0, "", false
	}
	percentStr := strings.TrimSpace(strings.SplitN(line, "%", 2)[0])
	percent, err := strconv.Atoi(percentStr)
	if err != nil || percent < 0 || percent > 100 {
		return 0, "", false
	}
	file = strings.SplitN(line, " - ", 2)[1]
	return percent, file, true
}

// verifyExtraction polls for the expected install artifacts for a short
// while; the extraction may still be flushing files.
func (di *DiagboxInstaller) verifyExtraction() bool {
	verificationPaths := []string{di.cfg.LauncherExe, di.cfg.VersionFile}
	for attempt := 0; attempt < verifyAttempts; attempt++ {
		for _, p := range verificationPaths {
			if _, err := os.Stat(p); err == nil {
				return true
			}
		}
		time.Sleep(verifyInterval)
	}
	return false
}

// installDriver runs DPInst when the release ships it. A DriverStore ini
// already in place means the driver is installed; exit code 256 means
// installed but a reboot is needed.
func (di *DiagboxInstaller) installDriver() {
	cfg, tr := di.cfg, di.tr
	if _, err := os.Stat(cfg.DPInstExe); err != nil {
		di.Callbacks.DriverDone(false, tr.Tr("messages.vci_driver.not_found", StringMap{"path": cfg.DPInstExe}))
		return
	}
	log.Printf("Found DPInst at: %s", cfg.DPInstExe)
	if _, err := os.Stat(cfg.DriverIniFile); err == nil {
		log.Println("VCI .ini present before installation - already installed")
		di.Callbacks.DriverDone(true, tr.Get("messages.vci_driver.already_present"))
		return
	}
	log.Printf("Launching DPInst with /PATH %s", cfg.DPInstDriverDir)
	cmd := execCommand(cfg.DPInstExe, "/PATH", cfg.DPInstDriverDir)
	cmd.Dir = filepath.Dir(cfg.DPInstExe)
	out, err := cmd.CombinedOutput()
	rc := exitCode(err)
	log.Printf("DPInst returned code=%d", rc)
	if len(out) > 0 {
		log.Printf("DPInst output: %s", truncate(string(out), 2000))
	}
	switch {
	case rc == 0:
		if _, err := os.Stat(cfg.DriverIniFile); err == nil {
			di.Callbacks.DriverDone(true, tr.Get("messages.vci_driver.success"))
		} else {
			di.Callbacks.DriverDone(false, tr.Tr("messages.vci_driver.warning", StringMap{"code": "0"}))
		}
	case rc == 256:
		log.Println("DPInst returned reboot-required code; reporting success requiring reboot")
		di.Callbacks.DriverDone(true, tr.Get("messages.vci_driver.success_reboot"))
	default:
		di.Callbacks.DriverDone(false, tr.Tr("messages.vci_driver.warning", StringMap{"code": strconv.Itoa(rc)}))
	}
}

// installRuntimes runs the bundled runtimes installer silently. Problems
// are warnings, not failures.
func (di *DiagboxInstaller) installRuntimes() (warnings []string) {
	cfg, tr := di.cfg, di.tr
	if _, err := os.Stat(cfg.RuntimesExe); err != nil {
		msg := tr.Tr("messages.install.runtimes.not_found", StringMap{"path": cfg.RuntimesExe})
		di.Callbacks.RuntimesDone(false, msg)
		return []string{msg}
	}
	log.Printf("Found runtimes installer at: %s, launching with /ai /gm2", cfg.RuntimesExe)
	di.Callbacks.RuntimesStarted()
	out, err := execCommand(cfg.RuntimesExe, "/ai", "/gm2").CombinedOutput()
	if len(out) > 0 {
		log.Printf("Runtimes output: %s", truncate(string(out), 2000))
	}
	if err != nil {
		msg := tr.Tr("messages.install.runtimes.failed", StringMap{"code": strconv.Itoa(exitCode(err))})
		log.Printf("%s: %s", msg, truncate(string(out), 400))
		di.Callbacks.RuntimesDone(false, msg)
		return []string{msg}
	}
	msg := tr.Get("messages.install.runtimes.success")
	log.Println(msg)
	di.Callbacks.RuntimesDone(true, msg)
	return nil
}

func (di *DiagboxInstaller) addDefenderExclusions() {
	added, failed, err := addDefenderExclusions(di.cfg.DefenderExclusions)
	switch {
	case err != nil:
		log.Printf("Failed to create Defender exclusions: %s", err)
		di.Callbacks.DefenderDone(false, err.Error())
	case len(failed) > 0:
		msg := "Failed to add exclusions: " + strings.Join(failed, ", ")
		log.Println(msg)
		di.Callbacks.DefenderDone(false, msg)
	case len(added) > 0:
		msg := "Added exclusions: " + strings.Join(added, ", ")
		log.Println(msg)
		di.Callbacks.DefenderDone(true, msg)
	default:
		di.Callbacks.DefenderDone(true, "No changes needed")
	}
}

func containsPermissionError(errs []string) bool {
	for _, e := range errs {
		if strings.Contains(strings.ToLower(e), "permission") {
			return true
		}
	}
	return false
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
