package psadiag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanerDeletesFoldersAndShortcuts(t *testing.T) {
	dir := t.TempDir()
	folder := filepath.Join(dir, "AWRoot")
	require.NoError(t, os.MkdirAll(filepath.Join(folder, "bin"), 0755))
	shortcut := filepath.Join(dir, "Diagbox.lnk")
	require.NoError(t, os.WriteFile(shortcut, []byte("lnk"), 0644))

	cfg := defaultConfig()
	cfg.DPInstExe = filepath.Join(dir, "elsewhere", "DPInst.exe")
	c := NewCleaner(cfg, testTranslator(t))
	c.Folders = []string{folder}
	c.Shortcuts = []string{shortcut}
	c.DriverItems = nil

	count, _, ok := c.Run()
	assert.True(t, ok)
	assert.Equal(t, 2, count)
	assert.NoDirExists(t, folder)
	assert.NoFileExists(t, shortcut)
}

func TestCleanerReportsMissingShortcut(t *testing.T) {
	dir := t.TempDir()
	cfg := defaultConfig()
	cfg.DPInstExe = filepath.Join(dir, "x", "DPInst.exe")
	c := NewCleaner(cfg, testTranslator(t))
	c.Folders = nil
	c.Shortcuts = []string{filepath.Join(dir, "gone.lnk")}
	c.DriverItems = nil

	count, _, ok := c.Run()
	assert.False(t, ok)
	assert.Zero(t, count)
	assert.Len(t, c.FailedItems, 1)
}

func TestCleanerDefersFolderHoldingDPInst(t *testing.T) {
	dir := t.TempDir()
	folder := filepath.Join(dir, "AWRoot")
	dpinstDir := filepath.Join(folder, "extra", "drivers")
	require.NoError(t, os.MkdirAll(dpinstDir, 0755))

	cfg := defaultConfig()
	cfg.DPInstExe = filepath.Join(dpinstDir, "DPInst.exe")
	// INF missing, so the driver uninstall is never attempted.
	cfg.DriverInfFile = filepath.Join(dir, "missing.inf")

	c := NewCleaner(cfg, testTranslator(t))
	c.Folders = []string{folder}
	c.Shortcuts = nil
	c.DriverItems = []string{filepath.Join(dir, "driver.ini")}

	count, _, ok := c.Run()
	assert.False(t, ok)
	assert.Zero(t, count)
	// The folder survives because DPInst never ran successfully.
	assert.DirExists(t, folder)
}

func TestCleanerProgressCoversAllItems(t *testing.T) {
	dir := t.TempDir()
	folder := filepath.Join(dir, "INSTALL")
	require.NoError(t, os.MkdirAll(folder, 0755))

	cfg := defaultConfig()
	cfg.DPInstExe = filepath.Join(dir, "x", "DPInst.exe")
	c := NewCleaner(cfg, testTranslator(t))
	c.Folders = []string{folder}
	c.Shortcuts = nil
	c.DriverItems = nil

	var finals []int
	c.Progress = func(current, total int, item string) {
		assert.Equal(t, 1, total)
		finals = append(finals, current)
	}
	_, _, ok := c.Run()
	assert.True(t, ok)
	assert.Contains(t, finals, 1)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "c:/awroot/extra", normalizePath(`C:\AWRoot\Extra\`))
	assert.Equal(t, "c:/awroot", normalizePath("C:/AWRoot"))
}
