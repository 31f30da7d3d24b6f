package updater

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRequiresTargetAndNew(t *testing.T) {
	assert.Error(t, Run(Options{}))
	assert.Error(t, Run(Options{Target: "a"}))
}

func TestRunMissingNewExecutable(t *testing.T) {
	dir := t.TempDir()
	err := Run(Options{
		Target: filepath.Join(dir, "app.exe"),
		New:    filepath.Join(dir, "missing.exe"),
	})
	assert.Error(t, err)
}

func TestRunReplacesTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "app.exe")
	newExe := filepath.Join(dir, "app-new.exe")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0755))
	require.NoError(t, os.WriteFile(newExe, []byte("new"), 0755))

	require.NoError(t, Run(Options{Target: target, New: newExe}))

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), content)
}

func TestRunCreatesMissingTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "app.exe")
	newExe := filepath.Join(dir, "app-new.exe")
	require.NoError(t, os.WriteFile(newExe, []byte("new"), 0755))

	require.NoError(t, Run(Options{Target: target, New: newExe}))
	assert.FileExists(t, target)
}

func TestWaitForExitGonePID(t *testing.T) {
	// PIDs are recycled upwards; a huge one will not exist.
	assert.True(t, waitForExit(1<<22-1, time.Second))
}

func TestWaitForExitOwnPID(t *testing.T) {
	start := time.Now()
	assert.False(t, waitForExit(os.Getpid(), 300*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}
