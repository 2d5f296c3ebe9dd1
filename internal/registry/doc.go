// Package registry persists the fingerprint -> storage reference mapping in
// SQLite and exposes the duplicate checks the ingest orchestrator relies on.
//
// The registry_entries primary key is the only arbiter of uniqueness: Exists
// is advisory, Insert is authoritative and reports a collision with
// services.ErrDuplicateKey. Entries are append-only; nothing in this package
// updates or deletes them. Any other storage failure (I/O, lock exhaustion,
// an expired deadline) surfaces as services.ErrStoreUnavailable.
//
// Orphaned artifacts (uploads whose registry insert lost a race or never ran)
// are tracked in a separate table so an operator can reconcile them later.
//
// Schema changes bump schemaVersion in schema.go; users delete the database
// or re-ingest to adopt the new schema.
package registry
