package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"sieve/internal/fingerprint"
	"sieve/internal/services"
)

// Exists reports whether fp is already registered. The answer is advisory:
// another writer may register fp immediately afterwards.
func (s *Store) Exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	ctx = ensureContext(ctx)
	var found int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT 1 FROM registry_entries WHERE fingerprint = ? LIMIT 1`, string(fp),
		).Scan(&found)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, unavailable("exists", "lookup fingerprint", err)
	}
	return true, nil
}

// Insert records a new entry. A fingerprint that is already present fails
// with services.ErrDuplicateKey and leaves the existing row untouched.
func (s *Store) Insert(ctx context.Context, entry Entry) error {
	if !entry.Fingerprint.Valid() {
		return services.Wrap(services.ErrProcessing, stage, "insert", fmt.Sprintf("malformed fingerprint %q", entry.Fingerprint), nil)
	}
	if strings.TrimSpace(entry.StorageRef) == "" {
		return services.Wrap(services.ErrProcessing, stage, "insert", "storage reference is required", nil)
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var dhash any
	if entry.DHash != "" {
		dhash = entry.DHash
	}

	_, err := s.execWithRetry(ctx,
		`INSERT INTO registry_entries (fingerprint, storage_ref, dhash, created_at) VALUES (?, ?, ?, ?)`,
		string(entry.Fingerprint), entry.StorageRef, dhash, formatTime(created),
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return services.Wrap(services.ErrDuplicateKey, stage, "insert", fmt.Sprintf("fingerprint %s already registered", entry.Fingerprint), err)
	default:
		return unavailable("insert", "write entry", err)
	}
}

// Get returns the entry for fp, or nil when absent.
func (s *Store) Get(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, error) {
	ctx = ensureContext(ctx)
	var entry *Entry
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT fingerprint, storage_ref, dhash, created_at FROM registry_entries WHERE fingerprint = ?`, string(fp))
		e, scanErr := scanEntry(row)
		entry = e
		return scanErr
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, unavailable("get", "read entry", err)
	}
	return entry, nil
}

// List returns entries newest first. limit <= 0 returns every entry.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	ctx = ensureContext(ctx)
	query := `SELECT fingerprint, storage_ref, dhash, created_at FROM registry_entries ORDER BY created_at DESC, fingerprint`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var entries []Entry
	err := retryOnBusy(ctx, func() error {
		entries = entries[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, *e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, unavailable("list", "read entries", err)
	}
	return entries, nil
}

// Count returns the number of registered fingerprints.
func (s *Store) Count(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM registry_entries`).Scan(&count)
	})
	if err != nil {
		return 0, unavailable("count", "count entries", err)
	}
	return count, nil
}

// ReferencedRef reports whether any entry points at ref. Identical canonical
// bytes upload to the same content address, so an orphan can share its ref
// with a live entry.
func (s *Store) ReferencedRef(ctx context.Context, ref string) (bool, error) {
	ctx = ensureContext(ctx)
	var found int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT 1 FROM registry_entries WHERE storage_ref = ? LIMIT 1`, ref,
		).Scan(&found)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, unavailable("referenced", "lookup storage ref", err)
	}
	return true, nil
}

// Similar returns entries whose difference hash lies within maxDistance of
// probe, closest first. Entries without a hash are skipped.
func (s *Store) Similar(ctx context.Context, probe fingerprint.DHash, maxDistance int) ([]Match, error) {
	entries, err := s.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	var matches []Match
	for _, e := range entries {
		if e.DHash == "" {
			continue
		}
		h, err := fingerprint.ParseDHash(e.DHash)
		if err != nil {
			continue
		}
		if d := probe.Distance(h); d <= maxDistance {
			matches = append(matches, Match{Entry: e, Distance: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		fp      string
		ref     string
		dhash   sql.NullString
		created string
	)
	if err := row.Scan(&fp, &ref, &dhash, &created); err != nil {
		return nil, err
	}
	return &Entry{
		Fingerprint: fingerprint.Fingerprint(fp),
		StorageRef:  ref,
		DHash:       dhash.String,
		CreatedAt:   parseTime(created),
	}, nil
}
