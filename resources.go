package psadiag

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	rice "github.com/GeertJohan/go.rice"
)

var resourceBox *rice.Box

// openBoxes opens the resource payload box. For go.rice's 'append' mode to
// work, all calls to FindBox() have to be with a literal string parameter.
func openBoxes() {
	var err error
	resourceBox, err = rice.FindBox("resources")
	if err != nil {
		panic(err)
	}
}

// GetResource returns the contents of a single resource file.
func GetResource(name string) (string, error) {
	if resourceBox == nil {
		return "", fmt.Errorf("resource box not opened")
	}
	text, err := resourceBox.String(name)
	if err != nil {
		return "", fmt.Errorf("resource %s not found", name)
	}
	return text, nil
}

// MustGetResource is GetResource for resources that are part of the build
// and cannot be missing.
func MustGetResource(name string) string {
	text, err := GetResource(name)
	if err != nil {
		panic(err)
	}
	return text
}

// GetResourceFiltered returns the contents of all files inside a resource
// directory whose path matches the given filter, indexed by path.
func GetResourceFiltered(dir string, fileFilter *regexp.Regexp) (map[string]string, error) {
	if resourceBox == nil {
		return nil, fmt.Errorf("resource box not opened")
	}
	contents := make(map[string]string)
	err := resourceBox.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || fileFilter.FindStringIndex(path) == nil {
			return nil
		}
		text, err := resourceBox.String(path)
		if err != nil {
			return err
		}
		contents[strings.ReplaceAll(path, `\`, "/")] = text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resource dir %s not found", dir)
	}
	return contents, nil
}

// MustGetResourceFiltered is GetResourceFiltered for directories that are
// part of the build and cannot be missing.
func MustGetResourceFiltered(dir string, fileFilter *regexp.Regexp) map[string]string {
	contents, err := GetResourceFiltered(dir, fileFilter)
	if err != nil {
		panic(err)
	}
	return contents
}

// UnpackResourceDir writes all files under a resource directory into
// targetDir, keeping the relative layout.
func UnpackResourceDir(dir, targetDir string) error {
	contents, err := GetResourceFiltered(dir, regexp.MustCompile(`.*`))
	if err != nil {
		return err
	}
	for path, content := range contents {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		target := filepath.Join(targetDir, rel)
		if err = os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err = os.WriteFile(target, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}
