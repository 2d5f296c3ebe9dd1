package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sieve/internal/ingest"
	"sieve/internal/preflight"
	"sieve/internal/services"
)

type ingestRecord struct {
	Source      string `json:"source"`
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint,omitempty"`
	StorageRef  string `json:"storage_ref,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Error       string `json:"error,omitempty"`
	Retryable   bool   `json:"retryable,omitempty"`
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Register images, rejecting perceptual duplicates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			orch, err := ctx.orchestrator()
			if err != nil {
				return err
			}
			store, err := ctx.artifactStore()
			if err != nil {
				return err
			}
			if jobs <= 0 {
				jobs = cfg.Ingest.Jobs
			}
			if failed := preflight.Failed(preflight.Directories(cfg)); len(failed) > 0 {
				return fmt.Errorf("preflight: %s: %s", failed[0].Name, failed[0].Detail)
			}

			outcomes := orch.Batch(cmd.Context(), fileItems(args), store, jobs)
			records := make([]ingestRecord, 0, len(outcomes))
			failed := false
			for _, out := range outcomes {
				rec := ingestRecord{
					Source:      out.Source,
					Status:      outcomeStatus(out.Err),
					Fingerprint: string(out.Result.Fingerprint),
					StorageRef:  out.Result.StorageRef,
					RequestID:   out.Result.RequestID,
				}
				if out.Err != nil {
					rec.ErrorKind = services.Kind(out.Err)
					rec.Error = out.Err.Error()
					rec.Retryable = services.Retryable(out.Err)
					var dup *ingest.DuplicateError
					if errors.As(out.Err, &dup) && dup.PostUpload {
						rec.StorageRef = dup.StorageRef
					}
					if rec.ErrorKind != services.KindDuplicateContent {
						failed = true
					}
				}
				records = append(records, rec)
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, records); err != nil {
					return err
				}
			} else {
				renderIngestRecords(cmd, records)
			}
			if failed {
				return errSilentFailure
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "Maximum concurrent ingests (defaults to [ingest] jobs)")
	return cmd
}

func renderIngestRecords(cmd *cobra.Command, records []ingestRecord) {
	rows := make([][]string, 0, len(records))
	accepted, duplicates, failures := 0, 0, 0
	for _, rec := range records {
		detail := rec.StorageRef
		switch rec.Status {
		case "accepted":
			accepted++
		case "failed":
			failures++
			detail = rec.ErrorKind + ": " + rec.Error
		default:
			duplicates++
			if detail == "" {
				detail = "already registered"
			} else {
				detail = "orphaned " + detail
			}
		}
		rows = append(rows, []string{
			truncate(rec.Source, 40),
			rec.Status,
			dash(rec.Fingerprint),
			truncate(dash(detail), 72),
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, renderTable([]string{"File", "Status", "Fingerprint", "Detail"}, rows, nil))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%d accepted, %d duplicate, %d failed\n", accepted, duplicates, failures)
}
