package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sieve/internal/reconcile"
	"sieve/internal/registry"
)

func newOrphansCommand(ctx *commandContext) *cobra.Command {
	orphansCmd := &cobra.Command{
		Use:   "orphans",
		Short: "Inspect and clean up artifacts without a registry entry",
	}

	orphansCmd.AddCommand(newOrphansListCommand(ctx))
	orphansCmd.AddCommand(newOrphansReconcileCommand(ctx))

	return orphansCmd
}

func newOrphansListCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orphaned artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			orphans, err := reg.Orphans(cmd.Context(), all)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				if orphans == nil {
					orphans = []registry.Orphan{}
				}
				return writeJSON(cmd, orphans)
			}
			if len(orphans) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No orphaned artifacts")
				return nil
			}
			rows := make([][]string, 0, len(orphans))
			for _, o := range orphans {
				resolved := "-"
				if o.ResolvedAt != nil {
					resolved = formatTimestamp(*o.ResolvedAt)
				}
				rows = append(rows, []string{
					strconv.FormatInt(o.ID, 10),
					string(o.Fingerprint),
					o.StorageRef,
					o.Reason,
					formatTimestamp(o.CreatedAt),
					resolved,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Fingerprint", "Storage Ref", "Reason", "Created", "Resolved"}, rows,
				[]columnAlignment{alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include resolved orphans")
	return cmd
}

func newOrphansReconcileCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Delete orphaned artifacts no registry entry refers to",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := ctx.reconciler()
			if err != nil {
				return err
			}
			report, err := rec.Run(cmd.Context(), dryRun)
			if err != nil {
				if errors.Is(err, reconcile.ErrLocked) {
					return fmt.Errorf("%w; ingests or another reconcile are still running, try again later", err)
				}
				return err
			}

			if ctx.jsonOutput() {
				if report.Items == nil {
					report.Items = []reconcile.Item{}
				}
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				if len(report.Items) > 0 {
					rows := make([][]string, 0, len(report.Items))
					for _, item := range report.Items {
						rows = append(rows, []string{
							strconv.FormatInt(item.Orphan.ID, 10),
							item.Orphan.StorageRef,
							item.Action,
							truncate(dash(item.Error), 60),
						})
					}
					fmt.Fprintln(out, renderTable([]string{"ID", "Storage Ref", "Action", "Error"}, rows,
						[]columnAlignment{alignRight}))
				}
				prefix := ""
				if report.DryRun {
					prefix = "Dry run: "
				}
				fmt.Fprintf(out, "%sexamined %d, deleted %d, shared %d, missing %d, failed %d\n",
					prefix, report.Examined, report.Deleted, report.Shared, report.Missing, report.Failed)
			}
			if report.Failed > 0 {
				return errSilentFailure
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be deleted without changing anything")
	return cmd
}
