package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sieve/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	r := CheckDirectoryAccess("Test", dir)
	if !r.Passed {
		t.Fatalf("expected pass, got %+v", r)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	r := CheckDirectoryAccess("Test", filepath.Join(t.TempDir(), "missing"))
	if r.Passed {
		t.Fatal("expected failure for missing directory")
	}
	if !strings.Contains(r.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", r.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := CheckDirectoryAccess("Test", file)
	if r.Passed {
		t.Fatal("expected failure for regular file")
	}
	if !strings.Contains(r.Detail, "is not a directory") {
		t.Fatalf("unexpected detail: %s", r.Detail)
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if r := CheckFreeSpace("Space", dir, 1); !r.Passed {
		t.Fatalf("expected pass with a 1 byte floor, got %+v", r)
	}
	if r := CheckFreeSpace("Space", dir, ^uint64(0)); r.Passed {
		t.Fatalf("expected failure with an impossible floor, got %+v", r)
	}
	if r := CheckFreeSpace("Space", filepath.Join(dir, "missing"), 1); r.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_TestConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(context.Background(), cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Name == "Artifact free space" {
			continue
		}
		if !r.Passed {
			t.Fatalf("expected %s to pass: %s", r.Name, r.Detail)
		}
	}
	if results[4].Name != "Registry" {
		t.Fatalf("expected registry check last, got %s", results[4].Name)
	}
}

func TestFailed(t *testing.T) {
	results := []Result{{Name: "a", Passed: true}, {Name: "b"}}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "b" {
		t.Fatalf("unexpected failed set: %v", failed)
	}
}

func TestDirectories_ReportsMissingArtifactDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Artifacts.Dir = filepath.Join(t.TempDir(), "gone")
	failed := Failed(Directories(cfg))
	if len(failed) != 1 || failed[0].Name != "Artifact directory" {
		t.Fatalf("expected only the artifact directory to fail, got %v", failed)
	}
}
