// Package services defines shared utilities consumed by the ingestion
// pipeline and its collaborators.
//
// Key responsibilities:
//   - Sentinel error markers forming the failure taxonomy (invalid image,
//     processing error, store unavailable, upload failed, duplicate content)
//     plus the Wrap helper that keeps stage context and the cause chain.
//   - Context helpers that stamp correlation identifiers and submission
//     sources for logging.
//
// Use these helpers when wiring new pipeline steps so error classification and
// observability stay uniform.
package services
