package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"razer-doctor/internal/release"
	"razer-doctor/internal/usb"
)

const envPrefix = "RAZER_DOCTOR_"

type Config struct {
	DaemonBinary     string `yaml:"daemon_binary"`
	DaemonPIDFile    string `yaml:"daemon_pid_file"`
	KernelModule     string `yaml:"kernel_module"`
	ModuleFamily     string `yaml:"module_family"`
	DKMSRoot         string `yaml:"dkms_root"`
	DKMSPackage      string `yaml:"dkms_package"`
	EFIDir           string `yaml:"efi_dir"`
	SecureBootGlob   string `yaml:"secure_boot_glob"`
	Group            string `yaml:"group"`
	LogFile          string `yaml:"log_file"` // relative to the home directory
	PermissionMarker string `yaml:"permission_marker"`
	VendorID         string `yaml:"vendor_id"`

	LatestVersionURL     string        `yaml:"latest_version_url"`
	StrictVersionCompare bool          `yaml:"strict_version_compare"`
	HTTPTimeout          time.Duration `yaml:"http_timeout"`
	CommandTimeout       time.Duration `yaml:"command_timeout"`
	PythonInterpreter    string        `yaml:"python_interpreter"`

	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`
	// KeepLog records every run at debug level in DataDir.
	KeepLog bool `yaml:"keep_log"`
}

func Default() Config {
	home, _ := os.UserHomeDir()

	return Config{
		DaemonBinary:     "openrazer-daemon",
		DaemonPIDFile:    "openrazer-daemon.pid",
		KernelModule:     "razerkbd",
		ModuleFamily:     "razer",
		DKMSRoot:         "/var/lib/dkms/openrazer-driver",
		DKMSPackage:      "openrazer-driver",
		EFIDir:           "/sys/firmware/efi",
		SecureBootGlob:   "/sys/firmware/efi/efivars/SecureBoot*",
		Group:            "plugdev",
		LogFile:          ".local/share/openrazer/logs/razer.log",
		PermissionMarker: "Could not access /sys/",
		VendorID:         usb.RazerVendorID,

		LatestVersionURL:  release.LatestVersionURL,
		HTTPTimeout:       10 * time.Second,
		CommandTimeout:    15 * time.Second,
		PythonInterpreter: "python3",

		DataDir:  filepath.Join(home, ".local", "share", "razer-doctor"),
		LogLevel: "warn",
	}
}

// Dir is where the config file and env file live.
func Dir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "razer-doctor")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "razer-doctor")
}

// Load builds the configuration. Later sources win: defaults, the YAML
// file, the env file next to it, then RAZER_DOCTOR_* variables.
//
// An empty path means <Dir>/config.yaml, which may be absent. An explicit
// path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(Dir(), "config.yaml")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(path), "env")
	fileEnv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read env file %s: %w", envFile, err)
	}

	lookup := func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
		value, ok := fileEnv[key]
		return value, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	text := map[string]*string{
		"LATEST_VERSION_URL": &c.LatestVersionURL,
		"PYTHON":             &c.PythonInterpreter,
		"DATA_DIR":           &c.DataDir,
		"LOG_LEVEL":          &c.LogLevel,
	}
	for key, field := range text {
		if value, ok := lookup(envPrefix + key); ok && value != "" {
			*field = value
		}
	}

	durations := map[string]*time.Duration{
		"HTTP_TIMEOUT":    &c.HTTPTimeout,
		"COMMAND_TIMEOUT": &c.CommandTimeout,
	}
	for key, field := range durations {
		value, ok := lookup(envPrefix + key)
		if !ok || value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*field = d
	}

	flags := map[string]*bool{
		"STRICT_VERSIONS": &c.StrictVersionCompare,
		"KEEP_LOG":        &c.KeepLog,
	}
	for key, field := range flags {
		value, ok := lookup(envPrefix + key)
		if !ok || value == "" {
			continue
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*field = b
	}
	return nil
}

func (c Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command_timeout must be positive, got %s", c.CommandTimeout)
	}
	if len(c.VendorID) != 4 {
		return fmt.Errorf("vendor_id must be 4 hex digits, got %q", c.VendorID)
	}
	if _, err := strconv.ParseUint(c.VendorID, 16, 16); err != nil {
		return fmt.Errorf("vendor_id must be 4 hex digits, got %q", c.VendorID)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelWarn, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

func (c Config) WithStrictVersionCompare(strict bool) Config {
	c.StrictVersionCompare = strict
	return c
}

func (c Config) WithLatestVersionURL(url string) Config {
	c.LatestVersionURL = url
	return c
}

func (c Config) WithDataDir(dir string) Config {
	c.DataDir = dir
	return c
}

func (c Config) WithLogLevel(level string) Config {
	c.LogLevel = level
	return c
}

func (c Config) WithHTTPTimeout(d time.Duration) Config {
	c.HTTPTimeout = d
	return c
}
