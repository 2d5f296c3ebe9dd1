package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sieve/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check directories, free space, and registry readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				lines := renderSectionHeader("Readiness", colorize)
				lines = append(lines, preflightLines(results, colorize)...)
				fmt.Fprintln(out, strings.Join(lines, "\n"))
			}
			if len(preflight.Failed(results)) > 0 {
				return errSilentFailure
			}
			return nil
		},
	}
}

// preflightLines renders a summary line followed by one line per check.
func preflightLines(results []preflight.Result, colorize bool) []string {
	failed := preflight.Failed(results)
	lines := make([]string, 0, len(results)+1)
	if len(failed) == 0 {
		lines = append(lines, renderStatusLine("Summary", statusOK, fmt.Sprintf("%d checks passed", len(results)), colorize))
	} else {
		lines = append(lines, renderStatusLine("Summary", statusError, fmt.Sprintf("%d of %d checks failed", len(failed), len(results)), colorize))
	}
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}
