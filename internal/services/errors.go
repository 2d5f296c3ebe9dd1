package services

import (
	"errors"
	"fmt"
	"strings"
)

// Taxonomy markers. Every failure leaving the ingestion boundary satisfies
// errors.Is against exactly one of the first five.
var (
	ErrInvalidImage     = errors.New("invalid image")
	ErrProcessing       = errors.New("processing error")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUploadFailed     = errors.New("upload failed")
	ErrDuplicateContent = errors.New("duplicate content")

	// ErrDuplicateKey is raised by the registry when an insert collides with
	// an existing fingerprint. The orchestrator converts it to
	// ErrDuplicateContent.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Kind names used in logs and CLI output.
const (
	KindInvalidImage     = "invalid_image"
	KindProcessing       = "processing_error"
	KindStoreUnavailable = "store_unavailable"
	KindUploadFailed     = "upload_failed"
	KindDuplicateContent = "duplicate_content"
	KindUnknown          = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrProcessing
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to its taxonomy name.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateContent):
		return KindDuplicateContent
	case errors.Is(err, ErrInvalidImage):
		return KindInvalidImage
	case errors.Is(err, ErrUploadFailed):
		return KindUploadFailed
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrProcessing):
		return KindProcessing
	default:
		return KindUnknown
	}
}

// Retryable reports whether the caller may resubmit the same input after a
// failure without operator involvement.
func Retryable(err error) bool {
	switch Kind(err) {
	case KindStoreUnavailable, KindUploadFailed:
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
