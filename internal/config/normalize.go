package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRegistry(); err != nil {
		return err
	}
	if err := c.normalizeArtifacts(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("SIEVE_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = strings.TrimSpace(value)
	}
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRegistry() error {
	c.Registry.Path = strings.TrimSpace(c.Registry.Path)
	if c.Registry.Path == "" {
		c.Registry.Path = filepath.Join(c.Paths.DataDir, defaultRegistryFile)
	}
	var err error
	if c.Registry.Path, err = expandPath(c.Registry.Path); err != nil {
		return fmt.Errorf("registry.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeArtifacts() error {
	c.Artifacts.Dir = strings.TrimSpace(c.Artifacts.Dir)
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = filepath.Join(c.Paths.DataDir, defaultArtifactsSubdir)
	}
	var err error
	if c.Artifacts.Dir, err = expandPath(c.Artifacts.Dir); err != nil {
		return fmt.Errorf("artifacts.dir: %w", err)
	}
	c.Artifacts.NamePrefix = strings.TrimSpace(c.Artifacts.NamePrefix)
	if c.Artifacts.NamePrefix == "" {
		c.Artifacts.NamePrefix = defaultNamePrefix
	}
	c.Artifacts.UploadSource = strings.ToLower(strings.TrimSpace(c.Artifacts.UploadSource))
	if c.Artifacts.UploadSource == "" {
		c.Artifacts.UploadSource = UploadSourceCanonical
	}
	return nil
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("SIEVE_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
