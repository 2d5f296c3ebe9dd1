package testsupport

import (
	"path/filepath"
	"testing"

	"sieve/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Registry.Path = filepath.Join(base, "data", "registry.db")
	cfgVal.Artifacts.Dir = filepath.Join(base, "data", "artifacts")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithUploadSource selects which bytes the orchestrator hands to the store.
func WithUploadSource(source string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Artifacts.UploadSource = source
	}
}

// WithJobs overrides the batch concurrency bound.
func WithJobs(jobs int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.Jobs = jobs
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
