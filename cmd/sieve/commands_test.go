package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"sieve/internal/artifact"
	"sieve/internal/config"
	"sieve/internal/fingerprint"
	"sieve/internal/reconcile"
	"sieve/internal/registry"
	"sieve/internal/testsupport"
)

func TestIngestCommandAcceptsAndRejects(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()

	doc := testsupport.DocumentImage(640, 480)
	files := []string{
		writeImageFile(t, dir, "doc.png", testsupport.EncodePNG(t, doc)),
		writeImageFile(t, dir, "poster.jpg", testsupport.EncodeJPEG(t, testsupport.PosterImage(640, 480), 80)),
	}
	out, _, err := runCLI(t, append([]string{"--json", "ingest"}, files...), env.configPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	var records []ingestRecord
	decodeJSON(t, out, &records)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Status != "accepted" || rec.StorageRef == "" {
			t.Fatalf("expected accepted record, got %#v", rec)
		}
	}

	// A re-encoded copy is a duplicate and is not an error.
	copyPath := writeImageFile(t, dir, "doc-copy.jpg", testsupport.EncodeJPEG(t, doc, 70))
	out, _, err = runCLI(t, []string{"--json", "ingest", copyPath}, env.configPath)
	if err != nil {
		t.Fatalf("ingest duplicate: %v", err)
	}
	records = nil
	decodeJSON(t, out, &records)
	if records[0].Status != "duplicate" || records[0].ErrorKind != "duplicate_content" {
		t.Fatalf("expected duplicate record, got %#v", records[0])
	}

	out, _, err = runCLI(t, []string{"registry", "count"}, env.configPath)
	if err != nil {
		t.Fatalf("registry count: %v", err)
	}
	if strings.TrimSpace(out) != "2" {
		t.Fatalf("expected 2 entries, got %q", out)
	}
}

func TestIngestCommandStoresOriginalBytesWhenConfigured(t *testing.T) {
	env := setupCLITestEnv(t,
		testsupport.WithUploadSource(config.UploadSourceOriginal),
		testsupport.WithJobs(1),
	)
	dir := t.TempDir()

	original := testsupport.EncodePNG(t, testsupport.DocumentImage(640, 480))
	path := writeImageFile(t, dir, "doc.png", original)
	out, _, err := runCLI(t, []string{"--json", "ingest", path}, env.configPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	var records []ingestRecord
	decodeJSON(t, out, &records)
	if len(records) != 1 || records[0].Status != "accepted" {
		t.Fatalf("expected one accepted record, got %#v", records)
	}

	store, err := artifact.NewLocalFS(env.cfg.Artifacts.Dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	stored, err := store.Get(context.Background(), records[0].StorageRef)
	if err != nil {
		t.Fatalf("get artifact: %v", err)
	}
	if !bytes.Equal(stored, original) {
		t.Fatalf("stored %d bytes, want the %d submitted bytes", len(stored), len(original))
	}
}

func TestIngestCommandFailsOnInvalidImage(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	bad := writeImageFile(t, dir, "notes.txt", []byte("not an image"))

	out, _, err := runCLI(t, []string{"ingest", bad}, env.configPath)
	if !errors.Is(err, errSilentFailure) {
		t.Fatalf("expected silent failure, got %v", err)
	}
	requireContains(t, out, "invalid_image")
	requireContains(t, out, "0 accepted, 0 duplicate, 1 failed")

	_, _, err = runCLI(t, []string{"ingest", filepath.Join(dir, "missing.png")}, env.configPath)
	if !errors.Is(err, errSilentFailure) {
		t.Fatalf("expected missing file to be reported, got %v", err)
	}
}

func TestFingerprintCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeImageFile(t, t.TempDir(), "doc.png", testsupport.EncodePNG(t, testsupport.DocumentImage(1200, 900)))

	out, _, err := runCLI(t, []string{"--json", "fingerprint", path}, env.configPath)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	var records []fingerprintRecord
	decodeJSON(t, out, &records)
	if len(records) != 1 || records[0].Fingerprint != testsupport.DocumentFingerprint {
		t.Fatalf("unexpected records: %#v", records)
	}
	if records[0].Width != 800 || records[0].Height != 600 {
		t.Fatalf("expected canonical size 800x600, got %dx%d", records[0].Width, records[0].Height)
	}
	if records[0].DHash == "" {
		t.Fatal("expected dhash")
	}

	// Dry run leaves the registry untouched.
	out, _, err = runCLI(t, []string{"registry", "count"}, env.configPath)
	if err != nil {
		t.Fatalf("registry count: %v", err)
	}
	if strings.TrimSpace(out) != "0" {
		t.Fatalf("expected empty registry, got %q", out)
	}
}

func TestRegistryCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	doc := testsupport.DocumentImage(640, 480)
	path := writeImageFile(t, dir, "doc.png", testsupport.EncodePNG(t, doc))

	if _, _, err := runCLI(t, []string{"ingest", path}, env.configPath); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	out, _, err := runCLI(t, []string{"--json", "registry", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("registry list: %v", err)
	}
	var entries []registry.Entry
	decodeJSON(t, out, &entries)
	if len(entries) != 1 || string(entries[0].Fingerprint) != testsupport.DocumentFingerprint {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	out, _, err = runCLI(t, []string{"registry", "show", testsupport.DocumentFingerprint}, env.configPath)
	if err != nil {
		t.Fatalf("registry show: %v", err)
	}
	requireContains(t, out, entries[0].StorageRef)

	if _, _, err := runCLI(t, []string{"registry", "show", "0101010101010101"}, env.configPath); err == nil {
		t.Fatal("expected unknown fingerprint to fail")
	}
	if _, _, err := runCLI(t, []string{"registry", "show", "xyz"}, env.configPath); err == nil {
		t.Fatal("expected malformed fingerprint to fail")
	}

	probe := writeImageFile(t, dir, "probe.jpg", testsupport.EncodeJPEG(t, doc, 85))
	out, _, err = runCLI(t, []string{"registry", "similar", probe, "--distance", "8"}, env.configPath)
	if err != nil {
		t.Fatalf("registry similar: %v", err)
	}
	requireContains(t, out, entries[0].StorageRef)

	out, _, err = runCLI(t, []string{"registry", "health"}, env.configPath)
	if err != nil {
		t.Fatalf("registry health: %v\n%s", err, out)
	}
	requireContains(t, out, "Integrity")
	requireContains(t, out, "[OK] ok")
}

func TestOrphansReconcileCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	store, err := artifact.NewLocalFS(env.cfg.Artifacts.Dir)
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	ref, err := store.Put(ctx, artifact.Upload{Data: []byte("orphaned upload")})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	reg, err := registry.Open(env.cfg)
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	if _, err := reg.RecordOrphan(ctx, registry.Orphan{
		Fingerprint: fingerprint.Fingerprint(testsupport.DocumentFingerprint),
		StorageRef:  ref,
	}); err != nil {
		t.Fatalf("RecordOrphan: %v", err)
	}
	reg.Close()

	out, _, err := runCLI(t, []string{"orphans", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("orphans list: %v", err)
	}
	requireContains(t, out, ref)

	out, _, err = runCLI(t, []string{"orphans", "reconcile", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("reconcile dry run: %v", err)
	}
	requireContains(t, out, "Dry run: examined 1, deleted 1")
	if !store.Has(ref) {
		t.Fatal("dry run removed the artifact")
	}

	out, _, err = runCLI(t, []string{"--json", "orphans", "reconcile"}, env.configPath)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	var report reconcile.Report
	decodeJSON(t, out, &report)
	if report.Deleted != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if store.Has(ref) {
		t.Fatal("expected artifact to be deleted")
	}

	out, _, err = runCLI(t, []string{"orphans", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("orphans list: %v", err)
	}
	requireContains(t, out, "No orphaned artifacts")
}
