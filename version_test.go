package psadiag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	assert.Equal(t, []int{9, 186}, ParseVersion("09.186"))
	assert.Equal(t, []int{9, 186}, ParseVersion("Diagbox 09.186 (final)"))
	assert.Equal(t, []int{9}, ParseVersion("9"))
	assert.Equal(t, []int{0}, ParseVersion("latest"))
	assert.Equal(t, []int{0}, ParseVersion(""))
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 1, CompareVersions("9.186", "9.85"))
	assert.Equal(t, -1, CompareVersions("9.85", "9.186"))
	assert.Equal(t, 0, CompareVersions("09.85", "9.85"))
	assert.Equal(t, 0, CompareVersions("9.85", "9.85.0"))
	assert.Equal(t, 1, CompareVersions("9.85.1", "9.85"))
}

func TestSanitizeVersion(t *testing.T) {
	assert.Equal(t, "09.186", SanitizeVersion("Diagbox 09.186"))
	assert.Equal(t, "custom_build_", SanitizeVersion("custom build?"))
}

func TestInstalledVersion(t *testing.T) {
	dir := t.TempDir()
	versionFile := filepath.Join(dir, "Version.ini")

	assert.Equal(t, "", InstalledVersion(versionFile))

	require.NoError(t, os.WriteFile(versionFile, []byte("[APP]\nVersion=09.85\n"), 0644))
	assert.Equal(t, "09.85", InstalledVersion(versionFile))
}

func TestDownloadedArchives(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Diagbox_Install_09.85.7z"), []byte("old"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "09.186.7z"), []byte("new"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	archives := DownloadedArchives(dir)
	require.Len(t, archives, 2)
	versions := []string{archives[0].Version, archives[1].Version}
	assert.Contains(t, versions, "09.85")
	assert.Contains(t, versions, "09.186")
}

func TestArchivePathPrefersExistingFile(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "Diagbox_Install_09.85.7z")

	// Nothing downloaded yet: the old format is the path a download uses.
	assert.Equal(t, oldPath, ArchivePath(dir, "09.85"))

	newPath := filepath.Join(dir, "09.85.7z")
	require.NoError(t, os.WriteFile(newPath, []byte("x"), 0644))
	assert.Equal(t, newPath, ArchivePath(dir, "09.85"))
}

func TestLatestVersion(t *testing.T) {
	options := []VersionOption{
		{Version: "9.85"},
		{Version: "9.186"},
		{Version: "9.12"},
	}
	assert.Equal(t, "9.186", LatestVersion(options))
	assert.Equal(t, "", LatestVersion(nil))
}
