package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"sieve/internal/fileutil"
)

// LocalFS is a filesystem-backed content-addressed artifact store.
//
// Objects live at <root>/<shard>/<cid>, where shard is the last two
// characters of the CID, with a <cid>.json sidecar holding the suggested name
// and metadata.
type LocalFS struct {
	root string
}

// Sidecar is the metadata stored next to each object.
type Sidecar struct {
	Name     string            `json:"name,omitempty"`
	Size     int               `json:"size"`
	Metadata map[string]string `json:"metadata,omitempty"`
	StoredAt time.Time         `json:"stored_at"`
}

// NewLocalFS constructs a store rooted at root, creating the directory if needed.
func NewLocalFS(root string) (*LocalFS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalFS{root: root}, nil
}

// RefFor returns the reference Put would assign to data.
func RefFor(data []byte) (string, error) {
	id, err := cidFor(data)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func cidFor(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Put stores upload.Data and returns its CID. Storing bytes that are already
// present returns the existing reference.
func (s *LocalFS) Put(ctx context.Context, upload Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(upload.Data) == 0 {
		return "", errors.New("localfs: refusing to store empty object")
	}
	id, err := cidFor(upload.Data)
	if err != nil {
		return "", fmt.Errorf("localfs: derive cid: %w", err)
	}
	ref := id.String()
	path := s.pathFor(ref)

	if existing, err := os.ReadFile(path); err == nil {
		if !bytes.Equal(existing, upload.Data) {
			return "", fmt.Errorf("%w: %s", ErrCorrupt, ref)
		}
		return ref, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := fileutil.WriteFileAtomic(path, upload.Data, 0o444); err != nil {
		return "", fmt.Errorf("localfs: write object: %w", err)
	}

	sidecar := Sidecar{
		Name:     upload.Name,
		Size:     len(upload.Data),
		Metadata: upload.Metadata,
		StoredAt: time.Now().UTC(),
	}
	encoded, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return "", fmt.Errorf("localfs: encode sidecar: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path+".json", encoded, 0o644); err != nil {
		return "", fmt.Errorf("localfs: write sidecar: %w", err)
	}
	return ref, nil
}

// Get returns the bytes stored under ref after verifying their digest.
func (s *LocalFS) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.pathFor(ref))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, err
	}
	got, err := cidFor(data)
	if err != nil {
		return nil, err
	}
	if !got.Equals(id) {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, ref)
	}
	return data, nil
}

// Sidecar returns the metadata recorded when ref was stored.
func (s *LocalFS) Sidecar(ref string) (Sidecar, error) {
	if _, err := parseRef(ref); err != nil {
		return Sidecar{}, err
	}
	var sc Sidecar
	data, err := os.ReadFile(s.pathFor(ref) + ".json")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sc, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return sc, err
	}
	if err := json.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("localfs: decode sidecar: %w", err)
	}
	return sc, nil
}

// Has reports whether ref is stored.
func (s *LocalFS) Has(ref string) bool {
	if _, err := parseRef(ref); err != nil {
		return false
	}
	_, err := os.Stat(s.pathFor(ref))
	return err == nil
}

// Delete removes the object and its sidecar.
func (s *LocalFS) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := parseRef(ref); err != nil {
		return err
	}
	path := s.pathFor(ref)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return err
	}
	if err := os.Remove(path + ".json"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func parseRef(ref string) (cid.Cid, error) {
	id, err := cid.Decode(ref)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %q: %v", ErrInvalidRef, ref, err)
	}
	if id.Prefix().Codec != cid.Raw {
		return cid.Undef, fmt.Errorf("%w: %q: unexpected codec", ErrInvalidRef, ref)
	}
	return id, nil
}

func (s *LocalFS) pathFor(ref string) string {
	if len(ref) < 2 {
		return filepath.Join(s.root, ref)
	}
	return filepath.Join(s.root, ref[len(ref)-2:], ref)
}
