package psadiag

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// LogDir returns the directory all run logs are written to.
func LogDir() string {
	return filepath.Join(ConfigDir(), "logs")
}

// StartLogging sets up the logging. Logs always go to a timestamped file in
// the persistent config directory so packaged and dev runs share the same
// location.
func StartLogging() (*os.File, error) {
	logDir := LogDir()
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("creating log folder: %w", err)
	}
	logPath := filepath.Join(
		logDir, fmt.Sprintf("psa_diag_%s.log", time.Now().Format("20060102_150405")),
	)
	logfile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	log.SetFlags(log.Ldate | log.Ltime)
	log.SetOutput(logfile)
	return logfile, nil
}
