package ingest

import (
	"errors"
	"fmt"

	"sieve/internal/fingerprint"
	"sieve/internal/services"
)

// DuplicateError reports an image whose fingerprint is already registered.
// It satisfies errors.Is(err, services.ErrDuplicateContent).
type DuplicateError struct {
	Fingerprint fingerprint.Fingerprint
	// StorageRef is the orphaned upload when PostUpload is set, empty otherwise.
	StorageRef string
	// PostUpload is set when the duplicate was detected by the registry
	// insert after the artifact had already been uploaded.
	PostUpload bool
}

func (e *DuplicateError) Error() string {
	if e.PostUpload {
		return fmt.Sprintf("%s: fingerprint %s registered concurrently; artifact %s orphaned",
			services.ErrDuplicateContent, e.Fingerprint, e.StorageRef)
	}
	return fmt.Sprintf("%s: fingerprint %s already registered", services.ErrDuplicateContent, e.Fingerprint)
}

func (e *DuplicateError) Unwrap() error {
	return services.ErrDuplicateContent
}

// IsPostUpload reports whether err is a duplicate detected after upload.
func IsPostUpload(err error) bool {
	var dup *DuplicateError
	return errors.As(err, &dup) && dup.PostUpload
}

var taxonomy = []error{
	services.ErrInvalidImage,
	services.ErrProcessing,
	services.ErrStoreUnavailable,
	services.ErrUploadFailed,
	services.ErrDuplicateContent,
}

// classify returns err unchanged when it already carries a taxonomy marker,
// otherwise wraps it with fallback.
func classify(err error, fallback error, operation, message string) error {
	if err == nil {
		return nil
	}
	for _, marker := range taxonomy {
		if errors.Is(err, marker) {
			return err
		}
	}
	return services.Wrap(fallback, stage, operation, message, err)
}
