// Package logging assembles structured slog loggers and formatting helpers used
// across sieve.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code automatically tags log
// lines with correlation IDs and submission sources. Orphaned uploads are
// reported through WarnWithContext with event_type=orphaned_artifact so an
// operator can grep for them.
package logging
