package builder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records the commands a pipeline issues and creates the output
// files a real go build would produce.
type fakeRunner struct {
	commands [][]string
	failOn   string
}

func (f *fakeRunner) run(dir string, name string, args ...string) error {
	f.commands = append(f.commands, append([]string{name}, args...))
	if f.failOn != "" && containsArg(args, f.failOn) {
		return errors.New("boom")
	}
	// "go build -o <out> <pkg>" produces the output file.
	if name == "go" && len(args) >= 3 && args[0] == "build" {
		out := args[2]
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return err
		}
		return os.WriteFile(out, []byte("exe"), 0755)
	}
	return nil
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func testPipeline(t *testing.T) (*Pipeline, *fakeRunner) {
	t.Helper()
	dir := t.TempDir()
	installDir := filepath.Join(dir, "install")
	d, err := Load(writeDescriptor(t, dir,
		"name: PSA_DIAG\nversion: \"2.1.0.9\"\ninstall_dir: "+installDir+"\n"))
	require.NoError(t, err)
	// The version resource lands next to the main package sources.
	require.NoError(t, os.MkdirAll(mainPackageDir(d), 0755))

	runner := &fakeRunner{}
	return &Pipeline{Descriptor: d, Run: runner.run}, runner
}

func TestPipelineExecute(t *testing.T) {
	p, runner := testPipeline(t)
	d := p.Descriptor

	require.NoError(t, p.Execute())

	// Helper build, main build and rice append, in that order.
	require.Len(t, runner.commands, 3)
	assert.Equal(t, []string{"go", "build", "-o", d.helperExe(), d.HelperPackage}, runner.commands[0])
	assert.Equal(t, "go", runner.commands[1][0])
	assert.Contains(t, runner.commands[1], d.mainExe())
	assert.Equal(t, []string{"rice", "append", "--exec", d.mainExe()}, runner.commands[2])

	// The helper ended up staged and everything was deployed.
	assert.FileExists(t, filepath.Join(d.stagingDir(), "updater.exe"))
	assert.FileExists(t, filepath.Join(d.InstallDir, "PSA_DIAG.exe"))
	assert.FileExists(t, filepath.Join(d.InstallDir, "PSA_DIAG", "tools", "updater.exe"))
}

func TestPipelineWindowedBuild(t *testing.T) {
	p, runner := testPipeline(t)
	p.Descriptor.Console = false

	require.NoError(t, p.Execute())
	assert.Contains(t, runner.commands[1], "-ldflags")
	assert.Contains(t, runner.commands[1], "-H=windowsgui")
}

func TestPipelineConsoleBuildSkipsWindowedFlag(t *testing.T) {
	p, runner := testPipeline(t)
	p.Descriptor.Console = true

	require.NoError(t, p.Execute())
	assert.NotContains(t, runner.commands[1], "-ldflags")
}

func TestPipelineRemovesStaleStaging(t *testing.T) {
	p, _ := testPipeline(t)
	d := p.Descriptor

	stale := filepath.Join(d.stagingDir(), "old-helper.exe")
	require.NoError(t, os.MkdirAll(d.stagingDir(), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0755))

	require.NoError(t, p.Execute())
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(d.stagingDir(), "updater.exe"))
}

func TestPipelineStagesDirectoryStyleHelper(t *testing.T) {
	p, _ := testPipeline(t)
	d := p.Descriptor

	// A directory-style helper build under dist wins over the build output
	// and keeps its tree under tools/updater/.
	helperDir := filepath.Join(d.distDir(), "updater")
	require.NoError(t, os.MkdirAll(helperDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(helperDir, "updater.exe"), []byte("exe"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(helperDir, "helper.dll"), []byte("dll"), 0644))

	require.NoError(t, p.Execute())
	assert.FileExists(t, filepath.Join(d.stagingDir(), "updater", "updater.exe"))
	assert.FileExists(t, filepath.Join(d.stagingDir(), "updater", "helper.dll"))
}

func TestPipelineAbortsOnFirstFailure(t *testing.T) {
	p, runner := testPipeline(t)
	runner.failOn = p.Descriptor.HelperPackage

	err := p.Execute()
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageBuildHelper, stageErr.Stage)
	// Nothing past the failed step ran.
	assert.Len(t, runner.commands, 1)
}

func TestPipelineFailsWhenHelperOutputMissing(t *testing.T) {
	p, _ := testPipeline(t)
	// A run func that builds nothing leaves the stage step without input.
	p.Run = func(dir, name string, args ...string) error { return nil }

	err := p.Execute()
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageStageHelper, stageErr.Stage)
}

func TestPipelineCopiesDataEntries(t *testing.T) {
	p, _ := testPipeline(t)
	d := p.Descriptor

	toolDir := filepath.Join(d.baseDir, "vendor-tools")
	require.NoError(t, os.MkdirAll(toolDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(toolDir, "7za.exe"), []byte("7z"), 0755))
	d.Datas = []DataEntry{{Source: "vendor-tools/7za.exe", Dest: "tools/7za.exe"}}

	require.NoError(t, p.Execute())
	assert.FileExists(t, filepath.Join(d.distDir(), "tools", "7za.exe"))
	assert.FileExists(t, filepath.Join(d.InstallDir, "tools", "7za.exe"))
}
