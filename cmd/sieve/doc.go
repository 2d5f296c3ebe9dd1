// Package main hosts the sieve CLI entrypoint and command graph.
//
// The Cobra command tree is the operator surface over the ingest pipeline:
// submitting files, dry-run fingerprinting, inspecting the duplicate
// registry, reconciling orphaned artifacts, and configuration scaffolding.
// Configuration resolution, logger construction, and registry/artifact store
// wiring live in commandContext so subcommands only deal with presentation.
//
// Add functionality to the internal packages first and surface it here.
package main
