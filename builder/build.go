package builder

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

// Stage names identify which part of the pipeline failed.
const (
	StageBuildHelper = "build updater"
	StageStageHelper = "stage updater"
	StageBuildMain   = "build application"
	StageDeploy      = "deploy"
)

// StageError reports a failed pipeline stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// RunFunc executes an external command in a working directory.
type RunFunc func(dir string, name string, args ...string) error

// Pipeline runs the packaging steps described by a descriptor. Steps run in
// order and the first failure aborts the rest.
type Pipeline struct {
	Descriptor *Descriptor
	// Run executes build commands; replaceable for testing.
	Run RunFunc
}

// NewPipeline returns a pipeline that runs commands with their output
// attached to the current process.
func NewPipeline(d *Descriptor) *Pipeline {
	return &Pipeline{
		Descriptor: d,
		Run: func(dir string, name string, args ...string) error {
			cmd := exec.Command(name, args...)
			cmd.Dir = dir
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			return cmd.Run()
		},
	}
}

// Execute drives the four build steps.
func (p *Pipeline) Execute() error {
	steps := []struct {
		stage string
		run   func() error
	}{
		{StageBuildHelper, p.buildHelper},
		{StageStageHelper, p.stageHelper},
		{StageBuildMain, p.buildMain},
		{StageDeploy, p.deploy},
	}
	for _, step := range steps {
		log.Printf("==> %s", step.stage)
		if err := step.run(); err != nil {
			return &StageError{Stage: step.stage, Err: err}
		}
	}
	log.Printf("Build finished: %s", p.Descriptor.mainExe())
	return nil
}

// buildHelper compiles the updater helper into the build directory.
func (p *Pipeline) buildHelper() error {
	d := p.Descriptor
	out := d.helperExe()
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	return p.Run(d.baseDir, "go", "build", "-o", out, d.HelperPackage)
}

// stageHelper copies the helper's build output into the dist staging
// directory. A staging directory left over from an earlier build is removed
// completely first so stale files never ship.
func (p *Pipeline) stageHelper() error {
	d := p.Descriptor
	src, err := d.findHelperOutput()
	if err != nil {
		return err
	}
	staging := d.stagingDir()
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("removing stale staging dir: %w", err)
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return err
	}
	if src.IsDir {
		// A directory-style build keeps its tree under tools/<helper>/.
		target := filepath.Join(staging, d.HelperName)
		if err := os.MkdirAll(target, 0755); err != nil {
			return err
		}
		return copyTree(src.Path, target)
	}
	return copyFile(src.Path, filepath.Join(staging, filepath.Base(src.Path)))
}

// buildMain generates the version resource, compiles the application and
// appends the bundled data.
func (p *Pipeline) buildMain() error {
	d := p.Descriptor
	syso, extra, err := d.writeVersionResource()
	if err != nil {
		return err
	}
	defer func() {
		os.Remove(syso)
		for _, f := range extra {
			os.Remove(f)
		}
	}()

	if err := os.MkdirAll(d.distDir(), 0755); err != nil {
		return err
	}
	args := []string{"build", "-o", d.mainExe()}
	if !d.Console {
		args = append(args, "-ldflags", "-H=windowsgui")
	}
	args = append(args, d.MainPackage)
	if err := p.Run(d.baseDir, "go", args...); err != nil {
		return err
	}

	if err := p.Run(d.baseDir, "rice", "append", "--exec", d.mainExe()); err != nil {
		return fmt.Errorf("appending resources: %w", err)
	}
	return p.copyDatas()
}

// copyDatas places the descriptor's extra data entries into the dist tree.
func (p *Pipeline) copyDatas() error {
	d := p.Descriptor
	for _, entry := range d.Datas {
		src := d.resolve(entry.Source)
		dest := filepath.Join(d.distDir(), entry.Dest)
		info, err := os.Stat(src)
		if err != nil {
			return fmt.Errorf("data entry %s: %w", entry.Source, err)
		}
		if info.IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return err
			}
			if err := copyTree(src, dest); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		if err := copyFile(src, dest); err != nil {
			return err
		}
	}
	return nil
}

// deploy copies the finished dist tree into the install directory. An
// empty install dir skips deployment.
func (p *Pipeline) deploy() error {
	d := p.Descriptor
	if d.InstallDir == "" {
		log.Printf("No install dir set, skipping deploy")
		return nil
	}
	if err := os.MkdirAll(d.InstallDir, 0755); err != nil {
		return fmt.Errorf("creating install dir: %w", err)
	}
	return copyTree(d.distDir(), d.InstallDir)
}

// copyTree recursively copies the contents of src into dest.
func copyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
