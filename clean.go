package psadiag

import (
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Cleaner removes a Diagbox installation: install folders, desktop
// shortcuts and the VCI driver. Driver files are never deleted manually;
// only a successful DPInst uninstall may touch them, and folders containing
// the DPInst executable itself are deleted last so the uninstall can still
// run.
type Cleaner struct {
	Folders     []string
	Shortcuts   []string
	DriverItems []string

	// Progress is called once per processed item with its translated
	// label. Optional.
	Progress func(current, total int, item string)

	cfg *Config
	tr  *Translator

	FailedItems []string
}

func NewCleaner(cfg *Config, tr *Translator) *Cleaner {
	return &Cleaner{
		Folders:     cfg.CleanFolders,
		Shortcuts:   cfg.CleanShortcuts,
		DriverItems: cfg.DriverItems,
		cfg:         cfg,
		tr:          tr,
	}
}

// Run deletes everything and returns the number of successfully removed
// items together with a translated result message. A false result means at
// least one item could not be removed; the details are in FailedItems.
func (c *Cleaner) Run() (successCount int, message string, ok bool) {
	if c.Progress == nil {
		c.Progress = func(int, int, string) {}
	}
	total := len(c.Folders) + len(c.Shortcuts) + len(c.DriverItems)
	current := 0

	// Folders holding DPInst must survive until the driver uninstall ran.
	var activeFolders, deferredFolders []string
	dpinst := normalizePath(c.cfg.DPInstExe)
	for _, folder := range c.Folders {
		if strings.HasPrefix(dpinst, normalizePath(folder)+"/") {
			deferredFolders = append(deferredFolders, folder)
		} else {
			activeFolders = append(activeFolders, folder)
		}
	}

	deleteFolder := func(folder string) {
		c.Progress(current, total, c.tr.Tr("labels.deleting_folder", StringMap{"folder": filepath.Base(folder)}))
		if err := os.RemoveAll(folder); err != nil {
			log.Printf("Failed to delete folder %s: %s", folder, err)
			c.FailedItems = append(c.FailedItems, fmt.Sprintf("%s: %s", folder, err))
		} else {
			log.Printf("Deleted folder: %s", folder)
			successCount++
		}
		current++
		c.Progress(current, total, "")
	}

	for _, folder := range activeFolders {
		deleteFolder(folder)
	}

	for _, shortcut := range c.Shortcuts {
		c.Progress(current, total, c.tr.Tr("labels.deleting_shortcut", StringMap{"shortcut": filepath.Base(shortcut)}))
		if err := os.Remove(shortcut); err != nil {
			log.Printf("Failed to delete shortcut %s: %s", shortcut, err)
			c.FailedItems = append(c.FailedItems, fmt.Sprintf("%s: %s", filepath.Base(shortcut), err))
		} else {
			log.Printf("Deleted shortcut: %s", shortcut)
			successCount++
		}
		current++
		c.Progress(current, total, "")
	}

	dpinstSuccess := c.uninstallDriver()

	for _, item := range c.DriverItems {
		name := filepath.Base(item)
		if dpinstSuccess {
			c.Progress(current, total, c.tr.Tr("labels.deleting_shortcut", StringMap{"shortcut": name}))
			log.Printf("Driver removal handled by DPInst: %s", item)
			successCount++
		} else {
			log.Printf("DPInst not successful; skipping manual deletion for: %s", item)
			c.FailedItems = append(c.FailedItems, "DPInst not run or failed: "+name)
		}
		current++
		c.Progress(current, total, "")
	}

	for _, folder := range deferredFolders {
		if dpinstSuccess {
			deleteFolder(folder)
		} else {
			log.Printf("DPInst not successful; skipping deletion of deferred folder: %s", folder)
			c.FailedItems = append(c.FailedItems, "DPInst not run or failed: "+filepath.Base(folder))
			current++
			c.Progress(current, total, "")
		}
	}

	count := fmt.Sprintf("%d", successCount)
	if len(c.FailedItems) > 0 {
		message = c.tr.Tr("messages.clean.partial", StringMap{
			"count":  count,
			"errors": strings.Join(c.FailedItems, "\n"),
		})
		return successCount, message, false
	}
	return successCount, c.tr.Tr("messages.clean.success", StringMap{"count": count}), true
}

// uninstallDriver asks DPInst to remove the VCI driver. Nothing is
// attempted when the canonical INF or DPInst itself is missing.
func (c *Cleaner) uninstallDriver() bool {
	if len(c.DriverItems) == 0 {
		return false
	}
	if _, err := os.Stat(c.cfg.DriverInfFile); err != nil {
		return false
	}
	if _, err := os.Stat(c.cfg.DPInstExe); err != nil {
		return false
	}
	log.Printf("Attempting DPInst uninstall. DPInst path=%s, INF=%s", c.cfg.DPInstExe, c.cfg.DriverInfFile)
	if !IsElevated() {
		log.Println("Current process is not elevated. DPInst may require admin rights to uninstall the driver.")
	}
	cmd := execCommand(c.cfg.DPInstExe, "/U", c.cfg.DriverInfFile, "/S")
	cmd.Dir = filepath.Dir(c.cfg.DPInstExe)
	out, err := cmd.CombinedOutput()
	rc := exitCode(err)
	log.Printf("DPInst returncode=%d", rc)
	if len(out) > 0 {
		log.Printf("DPInst output: %s", truncate(string(out), 4000))
	}
	if rc != 0 {
		log.Printf("DPInst returned non-zero code %d", rc)
		c.FailedItems = append(c.FailedItems, fmt.Sprintf("DPInst: returncode=%d output=%s", rc, truncate(string(out), 1000)))
		return false
	}
	log.Println("DPInst reported success; driver uninstall requested")
	return true
}

// normalizePath lower-cases and slash-normalizes a path so Windows-style
// config paths compare reliably.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.ToLower(path.Clean(p))
}
