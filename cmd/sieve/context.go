package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"sieve/internal/artifact"
	"sieve/internal/canonical"
	"sieve/internal/config"
	"sieve/internal/ingest"
	"sieve/internal/logging"
	"sieve/internal/reconcile"
	"sieve/internal/registry"
)

// errSilentFailure marks a failure that has already been reported on stdout.
var errSilentFailure = errors.New("one or more operations failed")

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	registryOnce sync.Once
	registry     *registry.Store
	registryErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) loggerFor(component string) *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return logging.NewComponentLogger(c.logger, component)
}

func (c *commandContext) openRegistry() (*registry.Store, error) {
	c.registryOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.registryErr = err
			return
		}
		store, err := registry.Open(cfg)
		if err != nil {
			c.registryErr = fmt.Errorf("open registry: %w", err)
			return
		}
		c.registry = store
	})
	return c.registry, c.registryErr
}

func (c *commandContext) artifactStore() (*artifact.LocalFS, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := artifact.NewLocalFS(cfg.Artifacts.Dir)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	return store, nil
}

func (c *commandContext) orchestrator() (*ingest.Orchestrator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	normalizer, err := canonical.New(cfg.CanonicalOptions())
	if err != nil {
		return nil, err
	}
	reg, err := c.openRegistry()
	if err != nil {
		return nil, err
	}
	return ingest.New(ingest.Options{
		Normalizer:      normalizer,
		Registry:        reg,
		Logger:          c.loggerFor("cli"),
		RegistryTimeout: cfg.RegistryTimeout(),
		UploadTimeout:   cfg.UploadTimeout(),
		UploadSource:    cfg.Artifacts.UploadSource,
		NamePrefix:      cfg.Artifacts.NamePrefix,
		StoreLockPath:   cfg.ReconcileLockPath(),
	})
}

func (c *commandContext) reconciler() (*reconcile.Reconciler, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	reg, err := c.openRegistry()
	if err != nil {
		return nil, err
	}
	store, err := c.artifactStore()
	if err != nil {
		return nil, err
	}
	return reconcile.New(reg, store, cfg.ReconcileLockPath(), c.loggerFor("cli")), nil
}

func (c *commandContext) close() {
	if c.registry != nil {
		_ = c.registry.Close()
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
