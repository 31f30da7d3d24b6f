// Package builder turns a packaging descriptor into deployable Windows
// binaries. It drives four steps: build the updater helper, stage the
// helper's output, build the main application with its icon and manifest
// resources, and deploy the result to the install directory.
package builder

import (
	"fmt"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v2"
)

// DataEntry maps a source file or directory into the bundle.
type DataEntry struct {
	Source string `yaml:"source"`
	Dest   string `yaml:"dest"`
}

// Descriptor describes how the application and its helper are packaged.
type Descriptor struct {
	// Name is the base name of the produced executable, without extension.
	Name string `yaml:"name"`
	// MainPackage is the Go package path of the application entry point.
	MainPackage string `yaml:"main_package"`
	// HelperPackage is the Go package path of the updater helper.
	HelperPackage string `yaml:"helper_package"`
	// HelperName is the base name of the helper executable.
	HelperName string `yaml:"helper_name"`
	// Icon is the .ico file embedded into both executables.
	Icon string `yaml:"icon"`
	// RequireAdmin embeds a manifest that makes Windows prompt for
	// elevation on launch.
	RequireAdmin bool `yaml:"uac_admin"`
	// Console keeps the console window; when false the binary is built
	// windowed.
	Console bool `yaml:"console"`
	// Version is stamped into the executables' version resources.
	Version string `yaml:"version"`
	// Datas lists extra files appended to the main executable.
	Datas []DataEntry `yaml:"datas"`
	// InstallDir is where the finished build is deployed.
	InstallDir string `yaml:"install_dir"`

	// BuildDir, DistDir and StagingDir hold intermediate and final build
	// output. StagingDir is relative to DistDir.
	BuildDir   string `yaml:"build_dir"`
	DistDir    string `yaml:"dist_dir"`
	StagingDir string `yaml:"staging_dir"`

	// baseDir anchors relative paths; set by Load.
	baseDir string
}

// Load reads a descriptor file and applies defaults. Relative paths in the
// descriptor are resolved against the file's directory.
func Load(path string) (*Descriptor, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}
	d := &Descriptor{}
	if err := yaml.Unmarshal(content, d); err != nil {
		return nil, fmt.Errorf("parsing descriptor: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	d.baseDir = filepath.Dir(abs)
	d.applyDefaults()
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Descriptor) applyDefaults() {
	if d.Name == "" {
		d.Name = "PSA_DIAG"
	}
	if d.MainPackage == "" {
		d.MainPackage = "./cmd/psadiag"
	}
	if d.HelperPackage == "" {
		d.HelperPackage = "./cmd/updater"
	}
	if d.HelperName == "" {
		d.HelperName = "updater"
	}
	if d.Version == "" {
		d.Version = "0.0.0.0"
	}
	if d.BuildDir == "" {
		d.BuildDir = "build"
	}
	if d.DistDir == "" {
		d.DistDir = "dist"
	}
	if d.StagingDir == "" {
		d.StagingDir = filepath.Join(d.Name, "tools")
	}
	if d.InstallDir == "" {
		d.InstallDir = `C:\Program Files (x86)\PSA_DIAG`
	}
}

func (d *Descriptor) validate() error {
	if d.Icon != "" {
		if _, err := os.Stat(d.iconPath()); err != nil {
			return fmt.Errorf("icon not found: %s", d.Icon)
		}
	}
	for _, entry := range d.Datas {
		if entry.Source == "" {
			return fmt.Errorf("data entry with empty source")
		}
	}
	return nil
}

// resolve anchors a relative path at the descriptor's directory.
func (d *Descriptor) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.baseDir, p)
}

func (d *Descriptor) iconPath() string { return d.resolve(d.Icon) }

func (d *Descriptor) buildDir() string { return d.resolve(d.BuildDir) }

func (d *Descriptor) distDir() string { return d.resolve(d.DistDir) }

// stagingDir is where the helper's build output lands inside the dist tree.
func (d *Descriptor) stagingDir() string {
	return filepath.Join(d.distDir(), d.StagingDir)
}

// mainExe is the path of the built application executable.
func (d *Descriptor) mainExe() string {
	return filepath.Join(d.distDir(), d.Name+".exe")
}

// helperExe is the path the helper build step writes to.
func (d *Descriptor) helperExe() string {
	return filepath.Join(d.buildDir(), d.HelperName, d.HelperName+".exe")
}
