package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"sieve/internal/artifact"
	"sieve/internal/canonical"
	"sieve/internal/fingerprint"
	"sieve/internal/logging"
	"sieve/internal/registry"
	"sieve/internal/services"
	"sieve/internal/textutil"
)

const (
	stage = "ingest"

	// UploadCanonical uploads the normalized bytes.
	UploadCanonical = "canonical"
	// UploadOriginal uploads the bytes exactly as submitted.
	UploadOriginal = "original"

	defaultRegistryTimeout = 10 * time.Second
	defaultUploadTimeout   = 60 * time.Second
	defaultNamePrefix      = "image"
	orphanRecordTimeout    = 5 * time.Second
	storeLockRetryDelay    = 25 * time.Millisecond
)

// EventOrphanedArtifact tags log lines for uploads left without a registry entry.
const EventOrphanedArtifact = "orphaned_artifact"

// Registry is the subset of the duplicate registry the orchestrator needs.
type Registry interface {
	Exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error)
	Insert(ctx context.Context, entry registry.Entry) error
	RecordOrphan(ctx context.Context, orphan registry.Orphan) (int64, error)
}

// Options configures an Orchestrator.
type Options struct {
	Normalizer *canonical.Normalizer
	Registry   Registry
	Logger     *slog.Logger

	// RegistryTimeout bounds each registry call; UploadTimeout bounds the
	// upload. Zero selects the defaults.
	RegistryTimeout time.Duration
	UploadTimeout   time.Duration

	// UploadSource is UploadCanonical (default) or UploadOriginal.
	UploadSource string
	// NamePrefix starts the suggested artifact name.
	NamePrefix string

	// StoreLockPath names the lock file shared with orphan reconciliation.
	// When set, each ingest holds a shared lock on it from upload through
	// insert so reconcile never deletes a content address an ingest is
	// about to register.
	StoreLockPath string
}

// Orchestrator runs ingests against one registry.
type Orchestrator struct {
	normalizer      *canonical.Normalizer
	registry        Registry
	logger          *slog.Logger
	registryTimeout time.Duration
	uploadTimeout   time.Duration
	uploadSource    string
	namePrefix      string
	storeLockPath   string
}

// Result describes an accepted image.
type Result struct {
	StorageRef  string                  `json:"storage_ref"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	RequestID   string                  `json:"request_id"`
}

// Analysis holds the pure, side-effect free part of an ingest.
type Analysis struct {
	Canonical   []byte
	Fingerprint fingerprint.Fingerprint
	// DHash is empty when the difference hash could not be computed.
	DHash string
}

// New validates opts and builds an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Normalizer == nil {
		return nil, errors.New("ingest: normalizer is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("ingest: registry is required")
	}
	source := strings.ToLower(strings.TrimSpace(opts.UploadSource))
	switch source {
	case "":
		source = UploadCanonical
	case UploadCanonical, UploadOriginal:
	default:
		return nil, fmt.Errorf("ingest: unknown upload source %q", opts.UploadSource)
	}
	o := &Orchestrator{
		normalizer:      opts.Normalizer,
		registry:        opts.Registry,
		logger:          logging.NewComponentLogger(opts.Logger, "ingest"),
		registryTimeout: opts.RegistryTimeout,
		uploadTimeout:   opts.UploadTimeout,
		uploadSource:    source,
		namePrefix:      textutil.SanitizeToken(opts.NamePrefix, defaultNamePrefix),
		storeLockPath:   strings.TrimSpace(opts.StoreLockPath),
	}
	if o.registryTimeout <= 0 {
		o.registryTimeout = defaultRegistryTimeout
	}
	if o.uploadTimeout <= 0 {
		o.uploadTimeout = defaultUploadTimeout
	}
	return o, nil
}

// Analyze normalizes raw and derives its fingerprint and difference hash.
func (o *Orchestrator) Analyze(raw []byte) (Analysis, error) {
	canonicalBytes, err := o.normalizer.Normalize(raw)
	if err != nil {
		return Analysis{}, classify(err, services.ErrProcessing, "normalize", "normalize image")
	}
	fp, err := fingerprint.Generate(canonicalBytes)
	if err != nil {
		return Analysis{}, classify(err, services.ErrProcessing, "fingerprint", "generate fingerprint")
	}
	analysis := Analysis{Canonical: canonicalBytes, Fingerprint: fp}
	if h, err := fingerprint.DifferenceHash(canonicalBytes); err == nil {
		analysis.DHash = h.String()
	} else {
		o.logger.Debug("difference hash unavailable", logging.Error(err))
	}
	return analysis, nil
}

// Fingerprint runs normalization and fingerprinting only.
func (o *Orchestrator) Fingerprint(ctx context.Context, raw []byte) (fingerprint.Fingerprint, error) {
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrProcessing, stage, "fingerprint", "canceled", err)
	}
	analysis, err := o.Analyze(raw)
	if err != nil {
		return "", err
	}
	return analysis.Fingerprint, nil
}

// Ingest registers raw unless an image with the same fingerprint is already
// known. On success the artifact has been uploaded through store and the
// registry maps the fingerprint to the returned reference. On any failure
// before the upload nothing has been written anywhere.
func (o *Orchestrator) Ingest(ctx context.Context, raw []byte, store artifact.Store) (Result, error) {
	if store == nil {
		return Result{}, services.Wrap(services.ErrUploadFailed, stage, "upload", "no artifact store configured", nil)
	}
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
		ctx = services.WithRequestID(ctx, requestID)
	}
	logger := logging.WithContext(ctx, o.logger)
	started := time.Now()
	result := Result{RequestID: requestID}

	analysis, err := o.Analyze(raw)
	if err != nil {
		logger.Info("image rejected",
			logging.ErrorKind(services.Kind(err)),
			logging.Error(err),
		)
		return result, err
	}
	fp := analysis.Fingerprint
	result.Fingerprint = fp
	logger = logger.With(logging.Fingerprint(string(fp)))

	exists, err := o.exists(ctx, fp)
	if err != nil {
		logger.Warn("registry lookup failed",
			logging.EventType("registry_unavailable"),
			logging.Hint("check the registry database and retry"),
			logging.Error(err),
		)
		return result, err
	}
	if exists {
		logger.Info("duplicate rejected", logging.Bool("post_upload", false))
		return result, &DuplicateError{Fingerprint: fp}
	}

	release, err := o.shareStoreLock(ctx)
	if err != nil {
		logger.Warn("artifact store busy",
			logging.EventType("upload_failed"),
			logging.Hint("orphan reconciliation holds the store lock; resubmit once it finishes"),
			logging.Error(err),
		)
		return result, err
	}
	defer release()

	ref, err := o.upload(ctx, analysis, raw, requestID, store)
	if err != nil {
		logger.Warn("artifact upload failed",
			logging.EventType("upload_failed"),
			logging.Hint("check the artifact store and resubmit"),
			logging.Error(err),
		)
		return result, err
	}
	logger = logger.With(logging.StorageRef(ref))

	err = o.insert(ctx, registry.Entry{Fingerprint: fp, StorageRef: ref, DHash: analysis.DHash})
	switch {
	case err == nil:
		result.StorageRef = ref
		logger.Info("image accepted", logging.Duration("duration", time.Since(started)))
		return result, nil
	case errors.Is(err, services.ErrDuplicateKey):
		o.orphaned(ctx, logger, fp, ref, registry.ReasonDuplicateKey, err)
		return result, &DuplicateError{Fingerprint: fp, StorageRef: ref, PostUpload: true}
	default:
		reason := registry.ReasonStoreUnavailable
		if ctx.Err() != nil {
			reason = registry.ReasonCanceled
		}
		o.orphaned(ctx, logger, fp, ref, reason, err)
		return result, err
	}
}

// shareStoreLock takes the shared side of the store lock, waiting at most the
// upload deadline for a running reconcile to finish.
func (o *Orchestrator) shareStoreLock(ctx context.Context) (func(), error) {
	if o.storeLockPath == "" {
		return func() {}, nil
	}
	lock := flock.New(o.storeLockPath)
	waitCtx, cancel := context.WithTimeout(ctx, o.uploadTimeout)
	defer cancel()
	ok, err := lock.TryRLockContext(waitCtx, storeLockRetryDelay)
	if err != nil || !ok {
		if err == nil {
			err = waitCtx.Err()
		}
		return nil, services.Wrap(services.ErrUploadFailed, stage, "upload", "acquire shared store lock", err)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			o.logger.Warn("failed to release store lock",
				logging.String("lock", o.storeLockPath),
				logging.Error(err),
			)
		}
	}, nil
}

func (o *Orchestrator) exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.registryTimeout)
	defer cancel()
	exists, err := o.registry.Exists(callCtx, fp)
	if err != nil {
		return false, classify(err, services.ErrStoreUnavailable, "exists", "registry lookup")
	}
	return exists, nil
}

func (o *Orchestrator) insert(ctx context.Context, entry registry.Entry) error {
	callCtx, cancel := context.WithTimeout(ctx, o.registryTimeout)
	defer cancel()
	err := o.registry.Insert(callCtx, entry)
	if err == nil || errors.Is(err, services.ErrDuplicateKey) {
		return err
	}
	return classify(err, services.ErrStoreUnavailable, "insert", "registry insert")
}

func (o *Orchestrator) upload(ctx context.Context, analysis Analysis, raw []byte, requestID string, store artifact.Store) (string, error) {
	data, contentType, ext := analysis.Canonical, "image/jpeg", "jpg"
	if o.uploadSource == UploadOriginal {
		data = raw
		contentType, ext = sniffFormat(raw)
	}
	upload := artifact.Upload{
		Data: data,
		Name: fmt.Sprintf("%s_%s.%s", o.namePrefix, analysis.Fingerprint.Short(12), ext),
		Metadata: map[string]string{
			"fingerprint":  string(analysis.Fingerprint),
			"request_id":   requestID,
			"content_type": contentType,
		},
	}
	if analysis.DHash != "" {
		upload.Metadata["dhash"] = analysis.DHash
	}
	if src, ok := services.SourceFromContext(ctx); ok {
		upload.Metadata["source"] = src
		if name := textutil.SanitizeFileName(filepath.Base(src)); name != "" {
			upload.Metadata["source_name"] = name
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.uploadTimeout)
	defer cancel()
	ref, err := store.Put(callCtx, upload)
	if err != nil {
		// Upload failures are always reported as such, whatever the store
		// tagged them with.
		return "", services.Wrap(services.ErrUploadFailed, stage, "upload", "artifact store put", err)
	}
	if strings.TrimSpace(ref) == "" {
		return "", services.Wrap(services.ErrUploadFailed, stage, "upload", "artifact store returned an empty reference", nil)
	}
	return ref, nil
}

// orphaned logs and records an upload that has no registry entry. Recording
// is best effort and never changes the caller's error.
func (o *Orchestrator) orphaned(ctx context.Context, logger *slog.Logger, fp fingerprint.Fingerprint, ref, reason string, cause error) {
	logging.WarnWithContext(logger, "uploaded artifact has no registry entry",
		EventOrphanedArtifact,
		logging.String("reason", reason),
		logging.Hint("run `sieve orphans reconcile` to remove unreferenced artifacts"),
		logging.Impact("artifact store holds an unreferenced object"),
		logging.Error(cause),
	)

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), orphanRecordTimeout)
	defer cancel()
	id, err := o.registry.RecordOrphan(recordCtx, registry.Orphan{
		Fingerprint: fp,
		StorageRef:  ref,
		Reason:      reason,
	})
	if err != nil {
		logging.ErrorWithContext(logger, "failed to record orphaned artifact", EventOrphanedArtifact,
			logging.Hint("remove the artifact manually if it is unwanted"),
			logging.Error(err),
		)
		return
	}
	logger.Debug("orphaned artifact recorded", logging.Int64("orphan_id", id))
}

func sniffFormat(raw []byte) (contentType, ext string) {
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "application/octet-stream", "bin"
	}
	switch format {
	case "jpeg":
		return "image/jpeg", "jpg"
	default:
		return "image/" + format, format
	}
}
