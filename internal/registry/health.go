package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// CheckHealth returns diagnostic information about the registry database.
func (s *Store) CheckHealth(ctx context.Context) (Health, error) {
	ctx = ensureContext(ctx)
	health := Health{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("registry database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat registry database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("registry database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("registry database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping registry database: %w", err)
	}
	health.DatabaseReadable = true

	version, err := readSchemaVersion(connCtx, s.db)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.SchemaVersion = version

	if err := s.db.QueryRowContext(connCtx, "PRAGMA quick_check").Scan(&health.Integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}

	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM registry_entries").Scan(&health.Entries); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count entries: %w", err)
	}
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM orphaned_artifacts WHERE resolved_at IS NULL").Scan(&health.OpenOrphans); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count orphans: %w", err)
	}
	return health, nil
}

// Healthy reports whether the database is present, readable, and passes
// SQLite's quick integrity check.
func (h Health) Healthy() bool {
	return h.DatabaseExists && h.DatabaseReadable && h.Integrity == "ok" && h.SchemaVersion == schemaVersion
}
