package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the application home and related directories.
type Paths struct {
	Home   string `toml:"home"`
	AppDir string `toml:"app_dir"`
	// StateDir holds launcher-private files: the lock, the install ledger and logs.
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Service describes the database engine the launcher provisions and supervises.
type Service struct {
	Name             string            `toml:"name"`
	InstallDir       string            `toml:"install_dir"`
	DataDir          string            `toml:"data_dir"`
	Version          string            `toml:"version"`
	Port             string            `toml:"port"`
	Resource         string            `toml:"resource"`
	Section          string            `toml:"section"`
	Probe            string            `toml:"probe"`
	VerifyAttempts   int               `toml:"verify_attempts"`
	VerifyIntervalMS int               `toml:"verify_interval_ms"`
	VerifyTimeoutMS  int               `toml:"verify_timeout_ms"`
	Downloads        map[string]string `toml:"downloads"`
}

// Worker describes how the backend worker is located in packaged and source layouts.
type Worker struct {
	DistDir     string `toml:"dist_dir"`
	SrcDir      string `toml:"src_dir"`
	Module      string `toml:"module"`
	Interpreter string `toml:"interpreter"`
}

// Bundle is an auxiliary data bundle. URL and Root may contain the {id} and
// {suffix} placeholders. Root names the top-level directory the archive unpacks
// to; empty means it already unpacks to <id>_<suffix>.
type Bundle struct {
	ID     string `toml:"id"`
	Suffix string `toml:"suffix"`
	URL    string `toml:"url"`
	Root   string `toml:"root"`
}

// Download contains HTTP fetch settings.
type Download struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRedirects   int    `toml:"max_redirects"`
	Retries        int    `toml:"retries"`
	UserAgent      string `toml:"user_agent"`
}

// Shutdown controls process tree reaping.
type Shutdown struct {
	PollIntervalMS int `toml:"poll_interval_ms"`
	GraceMS        int `toml:"grace_ms"`
}

// Surface configures the local control server and progress wording.
type Surface struct {
	Bind    string `toml:"bind"`
	AppName string `toml:"app_name"`
}

// Frontend is the command that renders the main interface. Empty means headless.
type Frontend struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// MaxSizeMB rotates a log file at launch once it grows past this size. 0 disables rotation.
	MaxSizeMB int `toml:"max_size_mb"`
	// RetentionDays prunes rotated logs older than this. 0 keeps them forever.
	RetentionDays int `toml:"retention_days"`
}

// Config encapsulates all launcher configuration values.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Service  Service  `toml:"service"`
	Worker   Worker   `toml:"worker"`
	Bundles  []Bundle `toml:"bundles"`
	Download Download `toml:"download"`
	Shutdown Shutdown `toml:"shutdown"`
	Surface  Surface  `toml:"surface"`
	Frontend Frontend `toml:"frontend"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tessera/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error; defaults apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("tessera.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The application
// home is left to the startup sequence.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "tessera.lock")
}

// LedgerPath is the install ledger database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LogPath is the launcher's log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "tessera.log")
}

// ServiceFilePath is the optional INI override shared with the worker.
func (c *Config) ServiceFilePath() string {
	return filepath.Join(c.Paths.Home, c.Service.Resource+".cfg")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
