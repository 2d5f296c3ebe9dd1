package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCanonical(); err != nil {
		return err
	}
	if err := c.validateRegistry(); err != nil {
		return err
	}
	if err := c.validateArtifacts(); err != nil {
		return err
	}
	if c.Ingest.Jobs <= 0 {
		return errors.New("ingest.jobs must be positive")
	}
	return c.validateLogging()
}

func (c *Config) validateCanonical() error {
	cfg := c.Canonical
	if err := ensurePositiveMap(map[string]int{
		"canonical.max_width":  cfg.MaxWidth,
		"canonical.max_height": cfg.MaxHeight,
	}); err != nil {
		return err
	}
	if cfg.Quality < 1 || cfg.Quality > 100 {
		return errors.New("canonical.quality must be between 1 and 100")
	}
	if cfg.LowThreshold < 0 || cfg.HighThreshold > 255 {
		return errors.New("canonical thresholds must be between 0 and 255")
	}
	if cfg.LowThreshold >= cfg.HighThreshold {
		return errors.New("canonical.low_threshold must be less than canonical.high_threshold")
	}
	if cfg.MaxInputPixels <= 0 {
		return errors.New("canonical.max_input_pixels must be positive")
	}
	return nil
}

func (c *Config) validateRegistry() error {
	if c.Registry.Path == "" {
		return errors.New("registry.path must be set")
	}
	return ensurePositiveMap(map[string]int{
		"registry.busy_timeout_ms":           c.Registry.BusyTimeoutMillis,
		"registry.operation_timeout_seconds": c.Registry.OperationTimeoutSeconds,
	})
}

func (c *Config) validateArtifacts() error {
	if c.Artifacts.Dir == "" {
		return errors.New("artifacts.dir must be set")
	}
	if c.Artifacts.UploadTimeoutSeconds <= 0 {
		return errors.New("artifacts.upload_timeout_seconds must be positive")
	}
	switch c.Artifacts.UploadSource {
	case UploadSourceCanonical, UploadSourceOriginal:
	default:
		return fmt.Errorf("artifacts.upload_source: unsupported value %q (want %q or %q)",
			c.Artifacts.UploadSource, UploadSourceCanonical, UploadSourceOriginal)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
