// Package artifact defines the artifact store collaborator the ingest
// orchestrator uploads accepted images to, plus a local content-addressed
// backend.
//
// Store implementations return an opaque reference for every successful Put.
// The orchestrator never assumes Put is idempotent; the local backend happens
// to be, because references are CIDv1 (raw codec, sha2-256) digests of the
// stored bytes.
package artifact
