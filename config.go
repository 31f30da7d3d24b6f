package psadiag

import (
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Version is the application release version (keep in sync with release
// tags).
const Version = "2.1.0.9"

const configFilename = "config.yml"

// Config holds the remote endpoints and the fixed installation paths the
// tool operates on. The defaults match a standard Diagbox setup and can be
// overridden through the embedded config.yml resource.
type Config struct {
	URLLastVersionApp     string `yaml:"url_last_version_app"`
	URLLastVersionDiagbox string `yaml:"url_last_version_diagbox"`
	URLVersionOptions     string `yaml:"url_version_options"`
	URLRemoteMessages     string `yaml:"url_remote_messages"`
	URLLatestRelease      string `yaml:"url_latest_release"`

	// Password passed to 7-Zip when extracting release archives. Empty
	// means the archives are not protected.
	ArchivePassword string `yaml:"archive_password"`

	DiagboxRoot     string `yaml:"diagbox_root"`
	LauncherExe     string `yaml:"launcher_exe"`
	VersionFile     string `yaml:"version_file"`
	LanguageFile    string `yaml:"language_file"`
	DPInstExe       string `yaml:"dpinst_exe"`
	DPInstDriverDir string `yaml:"dpinst_driver_dir"`
	DriverInfFile   string `yaml:"driver_inf_file"`
	DriverIniFile   string `yaml:"driver_ini_file"`
	RuntimesExe     string `yaml:"runtimes_exe"`
	ExtractTarget   string `yaml:"extract_target"`

	DefenderExclusions []string `yaml:"defender_exclusions"`
	DiagboxProcesses   []string `yaml:"diagbox_processes"`

	CleanFolders   []string `yaml:"clean_folders"`
	CleanShortcuts []string `yaml:"clean_shortcuts"`
	DriverItems    []string `yaml:"driver_items"`

	DownloadDir string `yaml:"download_dir"`
}

// defaultConfig mirrors the fixed paths of a stock Diagbox installation.
func defaultConfig() *Config {
	return &Config{
		URLLastVersionApp:     "https://psa-diag.fr/diagbox/install/last_version_psadiag.json",
		URLLastVersionDiagbox: "https://psa-diag.fr/diagbox/install/last_version_diagbox.json",
		URLVersionOptions:     "https://psa-diag.fr/diagbox/install/available_versions.json",
		URLRemoteMessages:     "https://psa-diag.fr/diagbox/install/banner.json",
		URLLatestRelease:      "https://api.github.com/repos/RetroGameSets/PSA-DIAG/releases/latest",

		DiagboxRoot:     `C:\AWRoot`,
		LauncherExe:     `C:\AWRoot\bin\launcher\Diagbox.exe`,
		VersionFile:     `C:\AWRoot\bin\fi\Version.ini`,
		LanguageFile:    `C:\AWRoot\dtrd\Trans\Language.ini`,
		DPInstExe:       `C:\AWRoot\extra\drivers\xsevo\amd64\DPInst.exe`,
		DPInstDriverDir: `C:\AWRoot\extra\drivers\xsevo\dp`,
		DriverInfFile:   `C:\Windows\System32\DriverStore\FileRepository\vcommusb.inf_amd64_0cb1ee01f7e64ab9\vcommusb.inf`,
		DriverIniFile:   `C:\Windows\System32\DriverStore\FileRepository\vcommusb.inf_amd64_0cb1ee01f7e64ab9.ini`,
		RuntimesExe:     `C:\AWRoot\Extra\runtimes\runtimes.exe`,
		ExtractTarget:   `C:\`,

		DefenderExclusions: []string{
			`C:\AWRoot`,
			`C:\INSTALL`,
			`C:\Program Files (x86)\PSA VCI`,
			`C:\Program Files\PSA VCI`,
			`C:\Windows\VCX.dll`,
		},
		DiagboxProcesses: []string{
			"AWFInterpreter_vc80.exe", "LctPOLUX.exe", "AWRSrv.exe", "MCComm.exe",
			"fbguard.exe", "fbserver.exe", "httpd_ddc.exe", "diagnostic.exe",
			"awacscmd.exe", "awrcmd.exe", "AWACSserver.exe", "psaagent.exe",
			"psaSingleSignOnDaemon.exe", "psalance.exe", "sim.exe",
			"FirefoxPortable.exe", "Ftspssrv.exe", "j9w.exe", "eclipse.exe",
			"Java.exe", "Jusched.exe", "Pg_ctl.exe", "Postgres.exe", "Sed.exe",
			"DccFsmRunner.exe", "DdcECUReader.exe", "WSTransformer.exe",
			"partialtrace.exe", "psainterfaceservice.exe", "Ground.exe",
			"instsvc.exe", "instreg.exe", "Psarefreshredwire.exe",
			"PSA-AUTH_Killer.exe", "Diagbox.exe",
		},
		CleanFolders: []string{
			`C:\AWRoot`,
			`C:\INSTALL`,
		},
	}
}

// NewConfig loads the embedded config.yml over the built-in defaults.
func NewConfig() (*Config, error) {
	config := defaultConfig()
	configFile, err := GetResource(configFilename)
	if err == nil {
		err = yaml.Unmarshal([]byte(configFile), config)
		if err != nil {
			log.Printf("Unable to parse config file %s\n", configFilename)
			return config, err
		}
	}
	if config.DownloadDir == "" {
		config.DownloadDir = filepath.Join(ConfigDir(), "download")
	}
	return config, nil
}

// ConfigDir returns the persistent per-user directory for preferences, logs
// and downloaded updates.
func ConfigDir() string {
	base := os.Getenv("APPDATA")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			base = os.TempDir()
		} else {
			base = home
		}
	}
	return filepath.Join(base, "PSA_DIAG")
}
