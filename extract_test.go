package psadiag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse7zProgress(t *testing.T) {
	percent, file, ok := parse7zProgress(" 42% 2909 - AWRoot/bin/launcher/Diagbox.exe")
	require.True(t, ok)
	assert.Equal(t, 42, percent)
	assert.Equal(t, "AWRoot/bin/launcher/Diagbox.exe", file)

	_, _, ok = parse7zProgress("Extracting archive: install.7z")
	assert.False(t, ok)

	_, _, ok = parse7zProgress("150% 1 - file")
	assert.False(t, ok)

	_, _, ok = parse7zProgress("")
	assert.False(t, ok)
}

func TestVerifyExtraction(t *testing.T) {
	dir := t.TempDir()
	cfg := defaultConfig()
	cfg.LauncherExe = filepath.Join(dir, "Diagbox.exe")
	cfg.VersionFile = filepath.Join(dir, "Version.ini")

	di := NewDiagboxInstaller(cfg, testTranslator(t), "")
	require.NoError(t, os.WriteFile(cfg.VersionFile, []byte("Version=9.85"), 0644))
	assert.True(t, di.verifyExtraction())
}

func TestContainsPermissionError(t *testing.T) {
	assert.True(t, containsPermissionError([]string{"7za: Permission denied"}))
	assert.False(t, containsPermissionError([]string{"archive corrupt"}))
	assert.False(t, containsPermissionError(nil))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, -1, exitCode(os.ErrNotExist))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
