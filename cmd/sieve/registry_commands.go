package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sieve/internal/canonical"
	"sieve/internal/fingerprint"
	"sieve/internal/registry"
)

func newRegistryCommand(ctx *commandContext) *cobra.Command {
	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the duplicate registry",
	}

	registryCmd.AddCommand(newRegistryListCommand(ctx))
	registryCmd.AddCommand(newRegistryShowCommand(ctx))
	registryCmd.AddCommand(newRegistryCountCommand(ctx))
	registryCmd.AddCommand(newRegistrySimilarCommand(ctx))
	registryCmd.AddCommand(newRegistryHealthCommand(ctx))

	return registryCmd
}

func newRegistryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered fingerprints, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			entries, err := reg.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				if entries == nil {
					entries = []registry.Entry{}
				}
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Registry is empty")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderEntries(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show (0 for all)")
	return cmd
}

func renderEntries(entries []registry.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			string(e.Fingerprint),
			e.StorageRef,
			dash(e.DHash),
			formatTimestamp(e.CreatedAt),
		})
	}
	return renderTable([]string{"Fingerprint", "Storage Ref", "dHash", "Created"}, rows, nil)
}

func newRegistryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <fingerprint>",
		Short: "Show the entry for a fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fp, err := fingerprint.Parse(args[0])
			if err != nil {
				return err
			}
			reg, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			entry, err := reg.Get(cmd.Context(), fp)
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("fingerprint %s is not registered", fp)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, entry)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fingerprint: %s\n", entry.Fingerprint)
			fmt.Fprintf(out, "Storage Ref: %s\n", entry.StorageRef)
			fmt.Fprintf(out, "dHash:       %s\n", dash(entry.DHash))
			fmt.Fprintf(out, "Created:     %s\n", formatTimestamp(entry.CreatedAt))
			return nil
		},
	}
}

func newRegistryCountCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of registered fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			count, err := reg.Count(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]int{"count": count})
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.Itoa(count))
			return nil
		},
	}
}

func newRegistrySimilarCommand(ctx *commandContext) *cobra.Command {
	var distance int

	cmd := &cobra.Command{
		Use:   "similar <file>",
		Short: "List entries whose difference hash is close to an image",
		Long: "Computes the difference hash of the image's canonical form and lists registry\n" +
			"entries within the given Hamming distance. Use it to judge whether two images\n" +
			"sharing a fingerprint actually look alike.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			normalizer, err := canonical.New(cfg.CanonicalOptions())
			if err != nil {
				return err
			}
			raw, err := readImage(args[0])
			if err != nil {
				return err
			}
			canonicalBytes, err := normalizer.Normalize(raw)
			if err != nil {
				return err
			}
			probe, err := fingerprint.DifferenceHash(canonicalBytes)
			if err != nil {
				return err
			}
			fp, err := fingerprint.Generate(canonicalBytes)
			if err != nil {
				return err
			}

			reg, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			matches, err := reg.Similar(cmd.Context(), probe, distance)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				if matches == nil {
					matches = []registry.Match{}
				}
				return writeJSON(cmd, struct {
					Fingerprint string           `json:"fingerprint"`
					DHash       string           `json:"dhash"`
					Matches     []registry.Match `json:"matches"`
				}{string(fp), probe.String(), matches})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Probe fingerprint %s, dHash %s\n", fp, probe)
			if len(matches) == 0 {
				fmt.Fprintf(out, "No entries within distance %d\n", distance)
				return nil
			}
			rows := make([][]string, 0, len(matches))
			for _, m := range matches {
				same := ""
				if m.Entry.Fingerprint == fp {
					same = "yes"
				}
				rows = append(rows, []string{
					strconv.Itoa(m.Distance),
					string(m.Entry.Fingerprint),
					same,
					m.Entry.StorageRef,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Distance", "Fingerprint", "Same FP", "Storage Ref"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().IntVarP(&distance, "distance", "d", 10, "Maximum Hamming distance between difference hashes")
	return cmd
}

func newRegistryHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the registry database",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			health, checkErr := reg.CheckHealth(cmd.Context())
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, health); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Registry", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Database", statusInfo, health.DBPath, colorize))
				fmt.Fprintln(out, renderStatusLine("Exists", boolStatus(health.DatabaseExists), yesNo(health.DatabaseExists), colorize))
				fmt.Fprintln(out, renderStatusLine("Readable", boolStatus(health.DatabaseReadable), yesNo(health.DatabaseReadable), colorize))
				fmt.Fprintln(out, renderStatusLine("Schema version", statusInfo, strconv.Itoa(health.SchemaVersion), colorize))
				integrityKind := statusOK
				if health.Integrity != "ok" {
					integrityKind = statusError
				}
				fmt.Fprintln(out, renderStatusLine("Integrity", integrityKind, dash(health.Integrity), colorize))
				fmt.Fprintln(out, renderStatusLine("Entries", statusInfo, strconv.Itoa(health.Entries), colorize))
				orphanKind := statusOK
				if health.OpenOrphans > 0 {
					orphanKind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Open orphans", orphanKind, strconv.Itoa(health.OpenOrphans), colorize))
				if health.Error != "" {
					fmt.Fprintln(out, renderStatusLine("Error", statusError, health.Error, colorize))
				}
			}
			if checkErr != nil {
				return checkErr
			}
			if !health.Healthy() {
				return errors.New("registry is unhealthy")
			}
			return nil
		},
	}
}

func boolStatus(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}
