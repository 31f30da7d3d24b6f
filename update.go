package psadiag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const updaterName = "updater.exe"

// CheckAppUpdate fetches the published app version and compares it with the
// running release. It returns the newer version when one is available.
func (c *Client) CheckAppUpdate(ctx context.Context) (latest string, available bool, err error) {
	log.Println("Checking for app updates...")
	latest, err = c.LatestAppVersion(ctx)
	if err != nil {
		return "", false, err
	}
	log.Printf("Latest app version: %s, Current: %s", latest, Version)
	if latest == "" || latest == Version {
		return latest, false, nil
	}
	return latest, CompareVersions(latest, Version) == 1, nil
}

// ReleaseAsset is one downloadable file of a published release.
type ReleaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// LatestReleaseAsset queries the release API and returns the first
// executable asset of the latest release.
func (c *Client) LatestReleaseAsset(ctx context.Context) (*ReleaseAsset, error) {
	log.Printf("Querying release API for latest release: %s", c.cfg.URLLatestRelease)
	var release struct {
		Assets []ReleaseAsset `json:"assets"`
	}
	if err := c.getJSON(ctx, c.cfg.URLLatestRelease, 10*time.Second, &release); err != nil {
		return nil, err
	}
	for _, asset := range release.Assets {
		if strings.HasSuffix(strings.ToLower(asset.Name), ".exe") && asset.BrowserDownloadURL != "" {
			return &asset, nil
		}
	}
	return nil, errors.New("latest release has no executable asset")
}

// findUpdaterHelper locates the updater binary. Three locations are tried
// in order: the standalone copy bundled under tools, the onedir tree under
// tools, and a copy persisted by a previous run in the config dir.
func findUpdaterHelper(baseDir, configDir string) (path string, persisted bool, err error) {
	candidates := []struct {
		path      string
		persisted bool
	}{
		{filepath.Join(baseDir, "tools", updaterName), false},
		{filepath.Join(baseDir, "tools", "updater", updaterName), false},
		{filepath.Join(configDir, updaterName), true},
	}
	for _, candidate := range candidates {
		if _, statErr := os.Stat(candidate.path); statErr == nil {
			return candidate.path, candidate.persisted, nil
		}
	}
	return "", false, errors.New("updater helper not found")
}

// PerformSelfUpdate downloads the latest release executable and hands over
// to the updater helper. On success the caller must exit so the helper can
// replace the running binary.
func PerformSelfUpdate(ctx context.Context, cfg *Config, latestVersion string) error {
	client := NewClient(cfg)
	asset, err := client.LatestReleaseAsset(ctx)
	if err != nil {
		return err
	}

	updatesDir := filepath.Join(ConfigDir(), "updates")
	if err = os.MkdirAll(updatesDir, 0755); err != nil {
		return err
	}
	targetName := asset.Name
	if targetName == "" {
		targetName = fmt.Sprintf("PSA-DIAG-%s.exe", latestVersion)
	}
	downloadPath := filepath.Join(updatesDir, targetName)
	// A previous download would block the replace later on.
	if _, err = os.Stat(downloadPath); err == nil {
		log.Printf("Removing existing downloaded update before re-downloading: %s", downloadPath)
		if err = os.Remove(downloadPath); err != nil {
			log.Printf("Failed to remove previous download %s: %s", downloadPath, err)
		}
	}

	log.Printf("Downloading update asset: %s -> %s", asset.BrowserDownloadURL, downloadPath)
	download := NewDownload(asset.BrowserDownloadURL, downloadPath)
	if err = download.Run(ctx); err != nil {
		return fmt.Errorf("downloading update: %w", err)
	}
	log.Printf("Download complete: %s", downloadPath)

	currentExe, err := os.Executable()
	if err != nil {
		return err
	}
	baseDir := filepath.Dir(currentExe)
	helper, persisted, err := findUpdaterHelper(baseDir, ConfigDir())
	if err != nil {
		return err
	}
	// The bundled helper lives next to an executable that is about to be
	// replaced; run it from a persistent copy instead.
	persistentHelper := filepath.Join(ConfigDir(), updaterName)
	if !persisted {
		log.Printf("Copying updater from %s to %s", helper, persistentHelper)
		if err = copyFileContents(helper, persistentHelper); err != nil {
			return fmt.Errorf("persisting updater helper: %w", err)
		}
	}

	args := []string{
		"--target", currentExe,
		"--new", downloadPath,
		"--wait-pid", strconv.Itoa(os.Getpid()),
		"--restart",
		"--timeout", "15",
	}
	log.Printf("Launching updater helper: %s %v", persistentHelper, args)
	cmd := execCommand(persistentHelper, args...)
	if err = cmd.Start(); err != nil {
		return fmt.Errorf("launching updater helper: %w", err)
	}
	// Give the helper time to come up before the caller exits.
	time.Sleep(500 * time.Millisecond)
	return nil
}

// KillLeftoverUpdaters terminates updater processes left over from a
// previous self-update.
func KillLeftoverUpdaters() {
	killProcessesByName([]string{updaterName})
}

func copyFileContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err = os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
