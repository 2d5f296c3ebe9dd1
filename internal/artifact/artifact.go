package artifact

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports a reference with no stored object.
	ErrNotFound = errors.New("artifact: not found")
	// ErrInvalidRef reports a reference the backend cannot parse.
	ErrInvalidRef = errors.New("artifact: invalid reference")
	// ErrCorrupt reports stored bytes that no longer match their reference.
	ErrCorrupt = errors.New("artifact: content does not match reference")
)

// Upload is one object handed to a Store.
type Upload struct {
	Data []byte
	// Name is a suggested file name; backends may ignore it.
	Name     string
	Metadata map[string]string
}

// Store persists uploads and returns an opaque storage reference.
type Store interface {
	Put(ctx context.Context, upload Upload) (string, error)
}

// Deleter is implemented by stores that can remove an object by reference.
type Deleter interface {
	Delete(ctx context.Context, ref string) error
}

// UploadFunc adapts a function to the Store interface.
type UploadFunc func(ctx context.Context, upload Upload) (string, error)

// Put calls f.
func (f UploadFunc) Put(ctx context.Context, upload Upload) (string, error) {
	return f(ctx, upload)
}
