// Package config loads, normalizes, and validates sieve configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// SIEVE_DATA_DIR. The Config type centralizes every knob the CLI and the
// ingestion pipeline need: normalization constants, registry location and
// timeouts, artifact store location, and logging.
//
// The canonical section reaches the normalizer as a value via
// CanonicalOptions; nothing reads it from package state.
package config
