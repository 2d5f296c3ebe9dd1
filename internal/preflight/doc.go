// Package preflight provides readiness checks for the filesystem paths and
// the registry database sieve depends on.
//
// These checks run in two contexts:
//   - `sieve ingest` runs the directory checks before submitting a batch so a
//     read-only artifact directory fails once instead of once per file.
//   - `sieve status` runs RunAll and prints every result.
package preflight
