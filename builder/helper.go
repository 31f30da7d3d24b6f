package builder

import (
	"fmt"
	"os"
	"path/filepath"
)

// helperSource is a located helper build output.
type helperSource struct {
	// Path is the file or directory to stage.
	Path string
	// IsDir marks a directory-style build whose whole content is staged.
	IsDir bool
}

// findHelperOutput locates the helper's build output. Three locations are
// tried in order, first match wins: a directory-style build under dist, a
// single executable under dist, and the helper's own build directory.
func (d *Descriptor) findHelperOutput() (helperSource, error) {
	candidates := []helperSource{
		{Path: filepath.Join(d.distDir(), d.HelperName), IsDir: true},
		{Path: filepath.Join(d.distDir(), d.HelperName+".exe")},
		{Path: d.helperExe()},
	}
	for _, c := range candidates {
		info, err := os.Stat(c.Path)
		if err != nil {
			continue
		}
		if c.IsDir != info.IsDir() {
			continue
		}
		return c, nil
	}
	return helperSource{}, fmt.Errorf("helper output not found in %s or %s", d.distDir(), d.buildDir())
}
