package registry

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion changes whenever schema.sql does. There are no migrations:
// a registry from another version is refused and must be rebuilt by
// re-ingesting, since its fingerprints may not be comparable either.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// readSchemaVersion returns the recorded version, or 0 for a database that
// has not been initialized.
func readSchemaVersion(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}) (int, error) {
	var tables int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`,
	).Scan(&tables); err != nil {
		return 0, fmt.Errorf("check schema_version table: %w", err)
	}
	if tables == 0 {
		return 0, nil
	}
	var version int
	err := q.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// initSchema creates the tables on first open and checks the version on
// every later open. Creation runs in one transaction so concurrent first
// opens cannot both seed schema_version.
func (s *Store) initSchema(ctx context.Context) error {
	version, err := readSchemaVersion(ctx, s.db)
	if err != nil {
		return err
	}
	if version == 0 {
		return s.createSchema(ctx)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: %s has version %d, want %d (move it aside and re-ingest)",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Another process may have initialized the file since the first check.
	version, err := readSchemaVersion(ctx, tx)
	if err != nil {
		return err
	}
	if version != 0 {
		if version != schemaVersion {
			return fmt.Errorf("%w: %s has version %d, want %d", ErrSchemaMismatch, s.path, version, schemaVersion)
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}
