package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sieve/internal/fingerprint"
	"sieve/internal/services"
)

// RecordOrphan stores an artifact that has no registry entry and returns the
// new row id.
func (s *Store) RecordOrphan(ctx context.Context, orphan Orphan) (int64, error) {
	if orphan.StorageRef == "" {
		return 0, services.Wrap(services.ErrProcessing, stage, "record orphan", "storage reference is required", nil)
	}
	reason := orphan.Reason
	if reason == "" {
		reason = ReasonDuplicateKey
	}
	created := orphan.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO orphaned_artifacts (fingerprint, storage_ref, reason, created_at) VALUES (?, ?, ?, ?)`,
		string(orphan.Fingerprint), orphan.StorageRef, reason, formatTime(created),
	)
	if err != nil {
		return 0, unavailable("record orphan", "write orphan", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, unavailable("record orphan", "read orphan id", err)
	}
	return id, nil
}

// Orphans lists orphaned artifacts oldest first. Resolved rows are included
// only when includeResolved is set.
func (s *Store) Orphans(ctx context.Context, includeResolved bool) ([]Orphan, error) {
	ctx = ensureContext(ctx)
	query := `SELECT id, fingerprint, storage_ref, reason, created_at, resolved_at FROM orphaned_artifacts`
	if !includeResolved {
		query += ` WHERE resolved_at IS NULL`
	}
	query += ` ORDER BY id`

	var orphans []Orphan
	err := retryOnBusy(ctx, func() error {
		orphans = orphans[:0]
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				o        Orphan
				fp       string
				created  string
				resolved sql.NullString
			)
			if err := rows.Scan(&o.ID, &fp, &o.StorageRef, &o.Reason, &created, &resolved); err != nil {
				return err
			}
			o.Fingerprint = fingerprint.Fingerprint(fp)
			o.CreatedAt = parseTime(created)
			if resolved.Valid {
				t := parseTime(resolved.String)
				o.ResolvedAt = &t
			}
			orphans = append(orphans, o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, unavailable("orphans", "read orphans", err)
	}
	return orphans, nil
}

// ResolveOrphan marks an orphan as handled. Resolving an already resolved or
// unknown id is an error.
func (s *Store) ResolveOrphan(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE orphaned_artifacts SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`,
		formatTime(time.Now()), id,
	)
	if err != nil {
		return unavailable("resolve orphan", "update orphan", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable("resolve orphan", "read affected rows", err)
	}
	if affected == 0 {
		return fmt.Errorf("orphan %d not found or already resolved", id)
	}
	return nil
}
