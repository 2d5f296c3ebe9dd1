package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"sieve/internal/canonical"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the data and log directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Canonical contains the normalization constants that every fingerprint
// depends on. Changing any of them changes fingerprints for the same image,
// so an existing registry must be rebuilt after an edit.
type Canonical struct {
	MaxWidth      int `toml:"max_width"`
	MaxHeight     int `toml:"max_height"`
	Quality       int `toml:"quality"`
	LowThreshold  int `toml:"low_threshold"`
	HighThreshold int `toml:"high_threshold"`

	// MaxInputPixels bounds the declared size of a submission; it does not
	// change fingerprints.
	MaxInputPixels int64 `toml:"max_input_pixels"`
}

// Registry contains configuration for the SQLite duplicate registry.
type Registry struct {
	Path                    string `toml:"path"`
	BusyTimeoutMillis       int    `toml:"busy_timeout_ms"`
	OperationTimeoutSeconds int    `toml:"operation_timeout_seconds"`
}

// Artifacts contains configuration for the artifact store uploads.
type Artifacts struct {
	Dir                  string `toml:"dir"`
	NamePrefix           string `toml:"name_prefix"`
	UploadTimeoutSeconds int    `toml:"upload_timeout_seconds"`
	UploadSource         string `toml:"upload_source"` // "canonical" or "original"
}

// Ingest contains batch ingestion settings.
type Ingest struct {
	Jobs int `toml:"jobs"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for sieve.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Canonical: image normalization constants
//   - Registry: duplicate registry database
//   - Artifacts: artifact store location and upload policy
//   - Ingest: batch concurrency
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Canonical Canonical `toml:"canonical"`
	Registry  Registry  `toml:"registry"`
	Artifacts Artifacts `toml:"artifacts"`
	Ingest    Ingest    `toml:"ingest"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sieve/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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
		decoder.DisallowUnknownFields()
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
		_, err = os.Stat(expanded)
		if err != nil {
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

	projectPath, err := filepath.Abs("sieve.toml")
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

// EnsureDirectories creates the directories the registry, artifact store, and
// log files live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Artifacts.Dir, filepath.Dir(c.Registry.Path)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CanonicalOptions returns the normalization constants as the value consumed
// by the canonical package.
func (c *Config) CanonicalOptions() canonical.Options {
	return canonical.Options{
		MaxWidth:      c.Canonical.MaxWidth,
		MaxHeight:     c.Canonical.MaxHeight,
		Quality:       c.Canonical.Quality,
		LowThreshold:  c.Canonical.LowThreshold,
		HighThreshold: c.Canonical.HighThreshold,

		MaxInputPixels: c.Canonical.MaxInputPixels,
	}
}

// RegistryTimeout returns the per-call deadline applied to registry operations.
func (c *Config) RegistryTimeout() time.Duration {
	return time.Duration(c.Registry.OperationTimeoutSeconds) * time.Second
}

// UploadTimeout returns the deadline applied to a single artifact upload.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Artifacts.UploadTimeoutSeconds) * time.Second
}

// ReconcileLockPath returns the store lock file: ingests hold it shared from
// upload through insert, orphan reconciliation holds it exclusively.
func (c *Config) ReconcileLockPath() string {
	return filepath.Join(c.Paths.DataDir, "reconcile.lock")
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
