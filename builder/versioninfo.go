package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/josephspurrier/goversioninfo"
)

const manifestTemplate = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<assembly xmlns="urn:schemas-microsoft-com:asm.v1" manifestVersion="1.0">
  <trustInfo xmlns="urn:schemas-microsoft-com:asm.v3">
    <security>
      <requestedPrivileges>
        <requestedExecutionLevel level="%s" uiAccess="false"/>
      </requestedPrivileges>
    </security>
  </trustInfo>
</assembly>
`

// writeVersionResource generates the .syso resource compiled into the main
// package: version strings, the application icon and the UAC manifest.
// It returns the paths of the generated files so they can be cleaned up.
func (d *Descriptor) writeVersionResource() (sysoPath string, extra []string, err error) {
	major, minor, patch, build := versionNumbers(d.Version)
	vi := &goversioninfo.VersionInfo{
		FixedFileInfo: goversioninfo.FixedFileInfo{
			FileVersion:    goversioninfo.FileVersion{Major: major, Minor: minor, Patch: patch, Build: build},
			ProductVersion: goversioninfo.FileVersion{Major: major, Minor: minor, Patch: patch, Build: build},
			FileFlagsMask:  "3f",
			FileOS:         "040004",
			FileType:       "01",
		},
		StringFileInfo: goversioninfo.StringFileInfo{
			FileDescription:  d.Name,
			FileVersion:      d.Version,
			InternalName:     d.Name,
			OriginalFilename: d.Name + ".exe",
			ProductName:      d.Name,
			ProductVersion:   d.Version,
		},
		VarFileInfo: goversioninfo.VarFileInfo{
			Translation: goversioninfo.Translation{
				LangID:    goversioninfo.LngUSEnglish,
				CharsetID: goversioninfo.CsUnicode,
			},
		},
	}
	if d.Icon != "" {
		vi.IconPath = d.iconPath()
	}

	level := "asInvoker"
	if d.RequireAdmin {
		level = "requireAdministrator"
	}
	manifestPath := filepath.Join(d.buildDir(), d.Name+".exe.manifest")
	if err := os.MkdirAll(d.buildDir(), 0755); err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(manifestPath, []byte(fmt.Sprintf(manifestTemplate, level)), 0644); err != nil {
		return "", nil, fmt.Errorf("writing manifest: %w", err)
	}
	vi.ManifestPath = manifestPath

	vi.Build()
	vi.Walk()
	sysoPath = filepath.Join(mainPackageDir(d), "resource_windows_amd64.syso")
	if err := vi.WriteSyso(sysoPath, "amd64"); err != nil {
		return "", nil, fmt.Errorf("writing version resource: %w", err)
	}
	return sysoPath, []string{manifestPath}, nil
}

// mainPackageDir resolves the directory of the main package so the .syso
// lands next to its sources, where go build picks it up.
func mainPackageDir(d *Descriptor) string {
	pkg := strings.TrimPrefix(d.MainPackage, "./")
	return d.resolve(pkg)
}

// versionNumbers splits a dotted version into up to four numeric parts.
// Missing or malformed parts come out as zero.
func versionNumbers(version string) (major, minor, patch, build int) {
	parts := strings.Split(version, ".")
	nums := make([]int, 4)
	for i := 0; i < len(parts) && i < 4; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			break
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nums[3]
}
