// Package ingest runs the normalize -> fingerprint -> check -> upload ->
// register sequence for submitted images.
//
// The Orchestrator is safe for concurrent use; the registry is the only
// shared mutable state and its primary key decides races. The existence check
// before upload only saves work; the insert after upload is authoritative.
// When the insert loses a race the uploaded artifact is left behind, logged
// with event_type=orphaned_artifact, and recorded in the registry's orphan
// table for `sieve orphans reconcile`.
//
// Every error returned by Ingest satisfies errors.Is against one of the
// services taxonomy markers. Duplicates are reported as *DuplicateError,
// which distinguishes the cheap pre-check rejection from the post-upload one.
package ingest
