package logging

import (
	"context"
	"log/slog"

	"sieve/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldSource identifies where submitted bytes came from.
	FieldSource = "source"
	// FieldEventType classifies a log line for filtering (e.g. orphaned_artifact).
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to an operator reading a failure.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldErrorKind carries the taxonomy name of a failure.
	FieldErrorKind = "error_kind"
	// FieldFingerprint carries the 16-bit histogram fingerprint.
	FieldFingerprint = "fingerprint"
	// FieldStorageRef carries an artifact store reference.
	FieldStorageRef = "storage_ref"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	if src, ok := services.SourceFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSource, src))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
