package psadiag

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/eiannone/keyboard"
	"github.com/skratchdot/open-golang/open"
	"github.com/urfave/cli/v2"
)

// Exit codes form the operational contract with wrapper scripts.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitConfigError = 2
)

// Run sets up logging, resources, config and translations, then dispatches
// to the requested command. It returns the process exit code.
func Run() int {
	logfile, err := StartLogging()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}
	defer logfile.Close()
	log.Println("Initializing...")
	log.Printf("PSA-DIAG v%s", Version)

	openBoxes()
	config, err := NewConfig()
	if err != nil {
		log.Println(err)
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}
	translator := NewTranslatorVar(StringMap{"version": Version})
	if translator == nil {
		fmt.Fprintln(os.Stderr, "no translations available")
		return ExitConfigError
	}
	KillLeftoverUpdaters()

	app := &application{cfg: config, tr: translator, client: NewClient(config)}
	if err := app.cli().Run(os.Args); err != nil {
		log.Println(err)
		fmt.Fprintln(os.Stderr, err)
		return ExitError
	}
	return ExitOK
}

type application struct {
	cfg    *Config
	tr     *Translator
	client *Client
}

func (a *application) cli() *cli.App {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "print the version",
	}
	return &cli.App{
		Name:                 "psadiag",
		Usage:                "download, install and maintain PSA Diagbox",
		Version:              Version,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show system, installation and download status",
				Action: a.status,
			},
			{
				Name:   "versions",
				Usage:  "List the Diagbox versions offered by the update server",
				Action: a.versions,
			},
			{
				Name:  "download",
				Usage: "Download a Diagbox release archive",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "version",
						Usage: "Version to download (default: latest available)",
					},
				},
				Action: a.download,
			},
			{
				Name:  "install",
				Usage: "Extract a downloaded release onto the system drive",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "version",
						Usage: "Downloaded version to install (default: latest available)",
					},
					&cli.StringFlag{
						Name:  "archive",
						Usage: "Install from an explicit archive file",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Skip the minimum requirements check",
					},
				},
				Action: a.install,
			},
			{
				Name:  "clean",
				Usage: "Remove the Diagbox installation, shortcuts and driver",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Do not ask for confirmation",
					},
				},
				Action: a.clean,
			},
			{
				Name:   "launch",
				Usage:  "Start the installed Diagbox",
				Action: a.launch,
			},
			{
				Name:   "kill",
				Usage:  "Terminate all running Diagbox processes",
				Action: a.kill,
			},
			{
				Name:  "lang",
				Usage: "Show or change the Diagbox UI language",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "set",
						Usage: "Language code to switch Diagbox to",
					},
				},
				Action: a.diagboxLang,
			},
			{
				Name:  "app-lang",
				Usage: "Show or change this tool's language",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "set",
						Usage: "Language code to switch to",
					},
				},
				Action: a.appLang,
			},
			{
				Name:  "update",
				Usage: "Check for a newer release of this tool",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "install",
						Usage: "Download the new release and hand over to the updater",
					},
				},
				Action: a.update,
			},
			{
				Name:  "messages",
				Usage: "Show current announcements from the update server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "page",
						Usage: "Only show announcements for this page",
					},
				},
				Action: a.messages,
			},
			{
				Name:  "logs",
				Usage: "Show the log directory",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the log directory in the file manager",
					},
				},
				Action: a.logs,
			},
		},
	}
}

func (a *application) status(c *cli.Context) error {
	info := GetSystemInfo(a.cfg.ExtractTarget)
	fmt.Printf("OS:        %s\n", info.OSName)
	fmt.Printf("RAM:       %.1f GB\n", info.RAMGB)
	if info.FreeGB >= 0 {
		fmt.Printf("Free disk: %.1f GB\n", info.FreeGB)
	} else {
		fmt.Println("Free disk: N/A")
	}
	for _, problem := range info.CheckRequirements() {
		fmt.Println(a.tr.Tr(problem.ProblemKey, StringMap{
			"current": problem.Current, "minimum": problem.Minimum,
		}))
	}

	installed := InstalledVersion(a.cfg.VersionFile)
	if installed == "" {
		fmt.Println(a.tr.Get("labels.not_installed"))
	} else {
		fmt.Println(a.tr.Tr("labels.installed_version", StringMap{"version": installed}))
	}

	archives := DownloadedArchives(a.cfg.DownloadDir)
	for _, archive := range archives {
		fmt.Printf("  %s  %s\n", archive.Version, humanize.IBytes(uint64(archive.Size)))
	}
	if len(archives) == 0 {
		fmt.Println(a.tr.Get("labels.no_downloads"))
	}
	return nil
}

func (a *application) versions(c *cli.Context) error {
	options, err := a.client.VersionOptions(c.Context)
	if err != nil {
		return errors.New(a.tr.Get("messages.network.unreachable"))
	}
	if len(options) == 0 {
		fmt.Println(a.tr.Get("messages.versions.maintenance"))
		return nil
	}
	sort.SliceStable(options, func(i, j int) bool {
		return CompareVersions(options[i].Version, options[j].Version) == 1
	})
	installed := InstalledVersion(a.cfg.VersionFile)
	for _, option := range options {
		marker := " "
		if option.Version == installed {
			marker = "*"
		}
		fmt.Printf("%s %-10s %s\n", marker, option.Version, option.Display)
	}
	return nil
}

func (a *application) resolveOption(c *cli.Context, version string) (*VersionOption, error) {
	options, err := a.client.VersionOptions(c.Context)
	if err != nil {
		return nil, errors.New(a.tr.Get("messages.network.unreachable"))
	}
	if len(options) == 0 {
		return nil, errors.New(a.tr.Get("messages.versions.maintenance"))
	}
	if version == "" {
		version = LatestVersion(options)
	}
	for _, option := range options {
		if CompareVersions(option.Version, version) == 0 {
			return &option, nil
		}
	}
	return nil, errors.New(a.tr.Tr("messages.versions.unknown", StringMap{"version": version}))
}

func (a *application) download(c *cli.Context) error {
	option, err := a.resolveOption(c, c.String("version"))
	if err != nil {
		return err
	}
	path := ArchivePath(a.cfg.DownloadDir, option.Version)
	if _, err = os.Stat(path); err == nil {
		fmt.Println(a.tr.Tr("messages.download.already_present", StringMap{"version": option.Version}))
		return nil
	}
	download := NewDownload(option.URL, path)
	bar := pb.New(1000)
	bar.SetTemplateString(`{{bar . }} {{string . "percent"}} {{string . "speed"}} {{string . "eta"}}`)
	download.SetProgressFunc(func(p DownloadProgress) {
		bar.SetCurrent(int64(p.Permille))
		bar.Set("percent", fmt.Sprintf("%.1f%%", float64(p.Permille)/10))
		bar.Set("speed", fmt.Sprintf("%.1f MB/s", p.SpeedMBs))
		bar.Set("eta", p.ETA)
	})
	bar.Start()
	stopKeys := downloadControlKeys(download)
	err = download.Run(c.Context)
	stopKeys()
	bar.Finish()

	switch {
	case errors.Is(err, ErrDownloadCancelled):
		fmt.Println(a.tr.Tr("messages.download.cancelled", StringMap{"version": option.Version}))
		return nil
	case err != nil:
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return errors.New(a.tr.Tr(statusErr.MessageKey(), StringMap{"code": fmt.Sprint(statusErr.Code)}))
		}
		return errors.New(a.tr.Tr("messages.download.error_connection", nil))
	}
	fmt.Println(a.tr.Tr("messages.download.success", StringMap{"version": option.Version}))
	return nil
}

// downloadControlKeys wires pause/resume/cancel onto the keyboard for the
// duration of a download: p pauses, r resumes, c or Esc cancels.
func downloadControlKeys(d *Download) (stop func()) {
	if err := keyboard.Open(); err != nil {
		// No terminal (piped/CI run), downloads just can't be paused.
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-done:
				return
			default:
			}
			switch {
			case char == 'p':
				d.Pause()
			case char == 'r':
				d.Resume()
			case char == 'c' || key == keyboard.KeyEsc:
				d.Cancel()
				return
			}
		}
	}()
	return func() {
		close(done)
		keyboard.Close()
	}
}

func (a *application) install(c *cli.Context) error {
	archive := c.String("archive")
	if archive == "" {
		version := c.String("version")
		if version == "" {
			downloaded := DownloadedArchives(a.cfg.DownloadDir)
			if len(downloaded) == 0 {
				return errors.New(a.tr.Get("messages.install.no_archive"))
			}
			for _, d := range downloaded {
				if version == "" || CompareVersions(d.Version, version) == 1 {
					version = d.Version
				}
			}
		}
		archive = ArchivePath(a.cfg.DownloadDir, version)
	}
	if _, err := os.Stat(archive); err != nil {
		return errors.New(a.tr.Tr("messages.install.archive_missing", StringMap{"path": archive}))
	}

	if !c.Bool("force") {
		info := GetSystemInfo(a.cfg.ExtractTarget)
		if problems := info.CheckRequirements(); len(problems) > 0 {
			for _, problem := range problems {
				fmt.Println(a.tr.Tr(problem.ProblemKey, StringMap{
					"current": problem.Current, "minimum": problem.Minimum,
				}))
				fmt.Println(a.tr.Get(problem.SolutionKey))
			}
			return errors.New(a.tr.Get("messages.requirements.warning"))
		}
	}
	if !IsElevated() {
		fmt.Println(a.tr.Get("messages.install.needs_admin"))
	}

	// A running Diagbox would hold locks on the files being replaced.
	KillDiagboxProcesses(a.cfg)

	installer := NewDiagboxInstaller(a.cfg, a.tr, archive)
	bar := pb.New(100)
	bar.SetTemplateString(`{{bar . }} {{percent . }} {{string . "file"}}`)
	installer.Callbacks = InstallCallbacks{
		Progress: func(percent int, file string) {
			bar.SetCurrent(int64(percent))
			bar.Set("file", file)
		},
		DefenderDone:    func(ok bool, msg string) { log.Printf("Defender exclusions: %s", msg) },
		DriverDone:      func(ok bool, msg string) { fmt.Println(msg) },
		RuntimesStarted: func() { fmt.Println(a.tr.Get("labels.runtimes_running")) },
		RuntimesDone:    func(ok bool, msg string) { fmt.Println(msg) },
	}
	bar.Start()
	message, _, err := installer.Run()
	bar.Finish()
	if err != nil {
		return err
	}
	fmt.Println(message)
	return nil
}

func (a *application) clean(c *cli.Context) error {
	if !c.Bool("yes") {
		fmt.Println(a.tr.Get("messages.clean.confirm"))
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			return nil
		}
	}
	KillDiagboxProcesses(a.cfg)
	cleaner := NewCleaner(a.cfg, a.tr)
	cleaner.Progress = func(current, total int, item string) {
		if item != "" {
			fmt.Printf("[%d/%d] %s\n", current+1, total, item)
		}
	}
	_, message, _ := cleaner.Run()
	fmt.Println(message)
	return nil
}

func (a *application) launch(c *cli.Context) error {
	if err := LaunchDiagbox(a.cfg); err != nil {
		return errors.New(a.tr.Tr("messages.launch.not_found", StringMap{"path": a.cfg.LauncherExe}))
	}
	return nil
}

func (a *application) kill(c *cli.Context) error {
	killed := KillDiagboxProcesses(a.cfg)
	fmt.Println(a.tr.Tr("messages.kill.done", StringMap{"count": fmt.Sprint(killed)}))
	return nil
}

func (a *application) diagboxLang(c *cli.Context) error {
	if code := c.String("set"); code != "" {
		if err := SetDiagboxLanguage(a.cfg, code); err != nil {
			return errors.New(a.tr.Tr("messages.language.failed", StringMap{"error": err.Error()}))
		}
		fmt.Println(a.tr.Tr("messages.language.success", StringMap{"lang": code}))
		return nil
	}
	lang, err := DiagboxLanguage(a.cfg)
	if err != nil {
		return errors.New(a.tr.Tr("messages.language.not_found", StringMap{"path": a.cfg.LanguageFile}))
	}
	fmt.Println(lang)
	return nil
}

func (a *application) appLang(c *cli.Context) error {
	if code := c.String("set"); code != "" {
		if err := a.tr.SetLanguage(code); err != nil {
			return err
		}
	}
	for _, lang := range a.tr.GetLanguages() {
		marker := " "
		if lang == a.tr.GetLanguage() {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, lang)
	}
	return nil
}

func (a *application) update(c *cli.Context) error {
	latest, available, err := a.client.CheckAppUpdate(c.Context)
	if err != nil {
		fmt.Println(a.tr.Get("messages.update.check_failed"))
		return nil
	}
	if !available {
		log.Println("App is up to date")
		fmt.Println(a.tr.Get("messages.update.up_to_date"))
		return nil
	}
	fmt.Println(a.tr.Tr("messages.update.available", StringMap{
		"current": Version, "latest": latest,
	}))
	if !c.Bool("install") {
		return nil
	}
	if err = PerformSelfUpdate(c.Context, a.cfg, latest); err != nil {
		return errors.New(a.tr.Tr("messages.update.failed", StringMap{"error": err.Error()}))
	}
	fmt.Println(a.tr.Get("messages.update.closing_app"))
	return nil
}

func (a *application) messages(c *cli.Context) error {
	feed, err := a.client.Messages(c.Context)
	if err != nil {
		log.Println("Unable to load remote messages (no network connection)")
		return nil
	}
	page := c.String("page")
	for _, message := range ActiveMessages(feed, time.Now()) {
		if page != "" && !message.ShownOn(page) {
			continue
		}
		text := message.TextFor(a.tr.GetLanguage())
		if text.Text == "" {
			continue
		}
		fmt.Println(text.Text)
		if text.Link != "" {
			fmt.Printf("  %s\n", text.Link)
		}
	}
	return nil
}

func (a *application) logs(c *cli.Context) error {
	fmt.Println(LogDir())
	if c.Bool("open") {
		return open.Run(LogDir())
	}
	return nil
}
