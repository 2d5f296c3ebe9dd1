package artifact_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"sieve/internal/artifact"
)

func TestLocalFSPutGetDelete(t *testing.T) {
	store, err := artifact.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	ctx := context.Background()
	data := []byte("canonical bytes")

	ref, err := store.Put(ctx, artifact.Upload{Data: data, Name: "image_100000001000.jpg", Metadata: map[string]string{"fingerprint": "1000000010000001"}})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	want, err := artifact.RefFor(data)
	if err != nil {
		t.Fatalf("RefFor: %v", err)
	}
	if ref != want {
		t.Fatalf("ref %q, want %q", ref, want)
	}
	if !strings.HasPrefix(ref, "bafkrei") {
		t.Fatalf("expected CIDv1 raw sha2-256 ref, got %q", ref)
	}
	if !store.Has(ref) {
		t.Fatal("expected Has to report stored object")
	}

	got, err := store.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("Get returned %q", got)
	}

	sc, err := store.Sidecar(ref)
	if err != nil {
		t.Fatalf("Sidecar: %v", err)
	}
	if sc.Name != "image_100000001000.jpg" || sc.Size != len(data) || sc.Metadata["fingerprint"] != "1000000010000001" {
		t.Fatalf("unexpected sidecar: %#v", sc)
	}

	again, err := store.Put(ctx, artifact.Upload{Data: data})
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if again != ref {
		t.Fatalf("expected identical bytes to share a ref, got %q and %q", ref, again)
	}

	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.Has(ref) {
		t.Fatal("expected object to be gone")
	}
	if _, err := store.Get(ctx, ref); !errors.Is(err, artifact.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, ref); !errors.Is(err, artifact.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestLocalFSRejectsInvalidRefs(t *testing.T) {
	store, err := artifact.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	for _, ref := range []string{"", "not-a-cid", "../../etc/passwd"} {
		if _, err := store.Get(context.Background(), ref); !errors.Is(err, artifact.ErrInvalidRef) {
			t.Fatalf("Get(%q): expected ErrInvalidRef, got %v", ref, err)
		}
		if store.Has(ref) {
			t.Fatalf("Has(%q) should be false", ref)
		}
	}
}

func TestLocalFSDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.NewLocalFS(dir)
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	ctx := context.Background()
	ref, err := store.Put(ctx, artifact.Upload{Data: []byte("original")})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	path := dir + "/" + ref[len(ref)-2:] + "/" + ref
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if err := os.WriteFile(path, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, err := store.Get(ctx, ref); !errors.Is(err, artifact.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestLocalFSHonoursCancellation(t *testing.T) {
	store, err := artifact.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, artifact.Upload{Data: []byte("x")}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestUploadFuncSatisfiesStore(t *testing.T) {
	var store artifact.Store = artifact.UploadFunc(func(_ context.Context, u artifact.Upload) (string, error) {
		return "ref-" + u.Name, nil
	})
	ref, err := store.Put(context.Background(), artifact.Upload{Name: "a"})
	if err != nil || ref != "ref-a" {
		t.Fatalf("unexpected result %q, %v", ref, err)
	}
}
