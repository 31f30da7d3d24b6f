package psadiag

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAppUpdate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version": "99.0.0.0"}`))
	}))
	defer server.Close()

	cfg := defaultConfig()
	cfg.URLLastVersionApp = server.URL
	latest, available, err := NewClient(cfg).CheckAppUpdate(context.Background())
	require.NoError(t, err)
	assert.True(t, available)
	assert.Equal(t, "99.0.0.0", latest)
}

func TestCheckAppUpdateSameVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version": "` + Version + `"}`))
	}))
	defer server.Close()

	cfg := defaultConfig()
	cfg.URLLastVersionApp = server.URL
	_, available, err := NewClient(cfg).CheckAppUpdate(context.Background())
	require.NoError(t, err)
	assert.False(t, available)
}

func TestLatestReleaseAssetPicksFirstExe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"assets": [
			{"name": "checksums.txt", "browser_download_url": "http://x/sums"},
			{"name": "PSA-DIAG.exe", "browser_download_url": "http://x/app.exe"},
			{"name": "other.exe", "browser_download_url": "http://x/other.exe"}
		]}`))
	}))
	defer server.Close()

	cfg := defaultConfig()
	cfg.URLLatestRelease = server.URL
	asset, err := NewClient(cfg).LatestReleaseAsset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PSA-DIAG.exe", asset.Name)
	assert.Equal(t, "http://x/app.exe", asset.BrowserDownloadURL)
}

func TestLatestReleaseAssetNoExe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"assets": [{"name": "source.zip", "browser_download_url": "http://x/z"}]}`))
	}))
	defer server.Close()

	cfg := defaultConfig()
	cfg.URLLatestRelease = server.URL
	_, err := NewClient(cfg).LatestReleaseAsset(context.Background())
	assert.Error(t, err)
}

func TestFindUpdaterHelperOrder(t *testing.T) {
	baseDir := t.TempDir()
	configDir := t.TempDir()

	_, _, err := findUpdaterHelper(baseDir, configDir)
	assert.Error(t, err)

	// Lowest priority: persisted copy in the config dir.
	persistedPath := filepath.Join(configDir, "updater.exe")
	require.NoError(t, os.WriteFile(persistedPath, []byte("p"), 0755))
	path, persisted, err := findUpdaterHelper(baseDir, configDir)
	require.NoError(t, err)
	assert.True(t, persisted)
	assert.Equal(t, persistedPath, path)

	// Onedir tree under tools beats the persisted copy.
	onedirPath := filepath.Join(baseDir, "tools", "updater", "updater.exe")
	require.NoError(t, os.MkdirAll(filepath.Dir(onedirPath), 0755))
	require.NoError(t, os.WriteFile(onedirPath, []byte("d"), 0755))
	path, persisted, err = findUpdaterHelper(baseDir, configDir)
	require.NoError(t, err)
	assert.False(t, persisted)
	assert.Equal(t, onedirPath, path)

	// The standalone copy under tools wins over everything.
	standalonePath := filepath.Join(baseDir, "tools", "updater.exe")
	require.NoError(t, os.WriteFile(standalonePath, []byte("s"), 0755))
	path, persisted, err = findUpdaterHelper(baseDir, configDir)
	require.NoError(t, err)
	assert.False(t, persisted)
	assert.Equal(t, standalonePath, path)
}

func TestCopyFileContents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.exe")
	dst := filepath.Join(dir, "sub", "dst.exe")
	require.NoError(t, os.WriteFile(src, []byte("binary"), 0644))

	require.NoError(t, copyFileContents(src, dst))
	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("binary"), content)
}
