package preflight

import (
	"context"

	"sieve/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// minFreeBytes is the free-space floor below which the artifact directory
// check fails.
const minFreeBytes = 256 << 20

// Directories checks every directory sieve writes to.
func Directories(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Artifact directory", cfg.Artifacts.Dir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
}

// RunAll executes the directory checks, the artifact free-space check, and
// the registry check.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := Directories(cfg)
	results = append(results,
		CheckFreeSpace("Artifact free space", cfg.Artifacts.Dir, minFreeBytes),
		CheckRegistry(ctx, cfg),
	)
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
