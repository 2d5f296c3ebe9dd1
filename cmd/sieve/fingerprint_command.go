package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sieve/internal/canonical"
	"sieve/internal/fingerprint"
	"sieve/internal/services"
)

type fingerprintRecord struct {
	Source      string `json:"source"`
	Fingerprint string `json:"fingerprint,omitempty"`
	DHash       string `json:"dhash,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Error       string `json:"error,omitempty"`
}

func newFingerprintCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <file>...",
		Short: "Print fingerprints without touching the registry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			normalizer, err := canonical.New(cfg.CanonicalOptions())
			if err != nil {
				return err
			}

			records := make([]fingerprintRecord, 0, len(args))
			failed := false
			for _, path := range args {
				rec := fingerprintFile(normalizer, path)
				if rec.Error != "" {
					failed = true
				}
				records = append(records, rec)
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, records); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					size := "-"
					if rec.Width > 0 {
						size = fmt.Sprintf("%dx%d", rec.Width, rec.Height)
					}
					rows = append(rows, []string{
						truncate(rec.Source, 40),
						dash(rec.Fingerprint),
						dash(rec.DHash),
						size,
						truncate(dash(rec.Error), 60),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"File", "Fingerprint", "dHash", "Canonical", "Error"}, rows, nil))
			}
			if failed {
				return errSilentFailure
			}
			return nil
		},
	}
}

func fingerprintFile(normalizer *canonical.Normalizer, path string) fingerprintRecord {
	rec := fingerprintRecord{Source: path}
	fail := func(err error) fingerprintRecord {
		rec.ErrorKind = services.Kind(err)
		rec.Error = err.Error()
		return rec
	}

	raw, err := readImage(path)
	if err != nil {
		return fail(err)
	}
	canonicalBytes, err := normalizer.Normalize(raw)
	if err != nil {
		return fail(err)
	}
	fp, err := fingerprint.Generate(canonicalBytes)
	if err != nil {
		return fail(err)
	}
	rec.Fingerprint = string(fp)
	if h, err := fingerprint.DifferenceHash(canonicalBytes); err == nil {
		rec.DHash = h.String()
	}
	if img, err := canonical.DecodeGray(canonicalBytes); err == nil {
		rec.Width, rec.Height = img.Bounds().Dx(), img.Bounds().Dy()
	}
	return rec
}
