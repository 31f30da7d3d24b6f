package psadiag

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// LaunchDiagbox starts the installed Diagbox launcher. The launcher needs
// its own directory as working dir.
func LaunchDiagbox(cfg *Config) error {
	log.Println("Launch Diagbox initiated")
	if _, err := os.Stat(cfg.LauncherExe); err != nil {
		log.Printf("Diagbox.exe not found: %s", cfg.LauncherExe)
		return fmt.Errorf("diagbox launcher not found at %s", cfg.LauncherExe)
	}
	cmd := execCommand(cfg.LauncherExe)
	cmd.Dir = filepath.Dir(cfg.LauncherExe)
	return cmd.Start()
}

// KillDiagboxProcesses terminates every known Diagbox process and returns
// how many were killed.
func KillDiagboxProcesses(cfg *Config) int {
	return killProcessesByName(cfg.DiagboxProcesses)
}

// DiagboxLanguage reads the current Diagbox UI language from Language.ini.
func DiagboxLanguage(cfg *Config) (string, error) {
	content, err := os.ReadFile(cfg.LanguageFile)
	if err != nil {
		log.Printf("Diagbox language file not found: %s", cfg.LanguageFile)
		return "", err
	}
	for _, line := range strings.Split(string(content), "\n") {
		if strings.Contains(line, "=") {
			lang := strings.TrimSpace(strings.SplitN(line, "=", 2)[1])
			log.Printf("Detected Diagbox language: %s", lang)
			return lang, nil
		}
	}
	return "", fmt.Errorf("no language entry in %s", cfg.LanguageFile)
}

// SetDiagboxLanguage rewrites every key in Language.ini to the new language
// code.
func SetDiagboxLanguage(cfg *Config, langCode string) error {
	content, err := os.ReadFile(cfg.LanguageFile)
	if err != nil {
		return fmt.Errorf("diagbox language file not found at %s", cfg.LanguageFile)
	}
	log.Printf("Changing Diagbox language to: %s", langCode)
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	for i, line := range lines {
		if strings.Contains(line, "=") {
			key := strings.SplitN(line, "=", 2)[0]
			lines[i] = key + "=" + langCode
		}
	}
	if err = os.WriteFile(cfg.LanguageFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return err
	}
	log.Printf("Language changed successfully to %s", langCode)
	return nil
}
