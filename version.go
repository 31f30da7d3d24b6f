package psadiag

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var versionNumberRe = regexp.MustCompile(`\d+(?:\.\d+)*`)
var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// ParseVersion extracts the first numeric version (like "09.186") from a
// string and converts it to a list of ints for lexicographic comparison.
// If no numeric version is found, it returns [0].
func ParseVersion(version string) []int {
	m := versionNumberRe.FindString(version)
	if m == "" {
		return []int{0}
	}
	var parts []int
	for _, p := range strings.Split(m, ".") {
		n, err := strconv.Atoi(p)
		if err != nil {
			return []int{0}
		}
		parts = append(parts, n)
	}
	return parts
}

// CompareVersions compares two version strings numerically. It returns 1 if
// a>b, 0 if equal, -1 if a<b. Only the first numeric sequence of each
// string is compared; shorter versions are padded with zeros.
func CompareVersions(a, b string) int {
	aList, bList := ParseVersion(a), ParseVersion(b)
	for len(aList) < len(bList) {
		aList = append(aList, 0)
	}
	for len(bList) < len(aList) {
		bList = append(bList, 0)
	}
	for i := range aList {
		if aList[i] > bList[i] {
			return 1
		}
		if aList[i] < bList[i] {
			return -1
		}
	}
	return 0
}

// SanitizeVersion returns a safe filename base for a given version string.
// The first numeric sequence (e.g. "09.186") is preferred; otherwise unsafe
// filename characters are replaced with underscores.
func SanitizeVersion(version string) string {
	if m := versionNumberRe.FindString(version); m != "" {
		return m
	}
	return unsafeFilenameRe.ReplaceAllString(version, "_")
}

// InstalledVersion reads the installed Diagbox version from Version.ini.
// It returns an empty string when no installation is present.
func InstalledVersion(versionFile string) string {
	content, err := os.ReadFile(versionFile)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(content), "\n") {
		if strings.HasPrefix(line, "Version=") {
			return strings.TrimSpace(strings.SplitN(line, "=", 2)[1])
		}
	}
	return ""
}

// DownloadedArchive describes one Diagbox release archive found in the
// download folder.
type DownloadedArchive struct {
	Version string
	Path    string
	Size    int64
}

const oldArchivePrefix = "Diagbox_Install_"

// DownloadedArchives scans the download folder for release archives. Both
// naming formats are supported: "Diagbox_Install_09.180.7z" (old) and
// "09.180.7z" (new).
func DownloadedArchives(dir string) []DownloadedArchive {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var archives []DownloadedArchive
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".7z") {
			continue
		}
		version := strings.TrimSuffix(strings.TrimPrefix(name, oldArchivePrefix), ".7z")
		if version == "" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		archives = append(archives, DownloadedArchive{
			Version: version,
			Path:    filepath.Join(dir, name),
			Size:    info.Size(),
		})
	}
	return archives
}

// ArchivePath resolves the archive file for a version inside the download
// folder. Three formats are tried in order: the sanitized version name, the
// raw version name, and the old prefixed name. The first existing file
// wins; when none exist the old format is returned as the path a new
// download should use.
func ArchivePath(dir, version string) string {
	candidates := []string{
		filepath.Join(dir, SanitizeVersion(version)+".7z"),
		filepath.Join(dir, version+".7z"),
		filepath.Join(dir, oldArchivePrefix+version+".7z"),
	}
	for _, candidate := range candidates[:2] {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[2]
}

// LatestVersion returns the numerically latest version among the given
// remote options, or an empty string when there are none.
func LatestVersion(options []VersionOption) string {
	best := ""
	for _, option := range options {
		if best == "" || CompareVersions(option.Version, best) == 1 {
			best = option.Version
		}
	}
	return best
}
