package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"sieve/internal/artifact"
	"sieve/internal/logging"
	"sieve/internal/registry"
)

// ErrLocked reports that the store lock stayed held, by another run or by
// in-flight ingests, for the whole lock wait.
var ErrLocked = errors.New("artifact store lock is held")

const (
	defaultLockWait = 30 * time.Second
	lockRetryDelay  = 50 * time.Millisecond
)

// Registry is the subset of the duplicate registry reconciliation needs.
type Registry interface {
	Orphans(ctx context.Context, includeResolved bool) ([]registry.Orphan, error)
	ReferencedRef(ctx context.Context, ref string) (bool, error)
	ResolveOrphan(ctx context.Context, id int64) error
}

// Actions recorded per orphan.
const (
	ActionDeleted = "deleted"
	ActionShared  = "shared"
	ActionMissing = "missing"
	ActionFailed  = "failed"
)

// Item is the outcome for one orphan.
type Item struct {
	Orphan registry.Orphan `json:"orphan"`
	Action string          `json:"action"`
	Error  string          `json:"error,omitempty"`
}

// Report summarises a run.
type Report struct {
	DryRun   bool   `json:"dry_run"`
	Examined int    `json:"examined"`
	Deleted  int    `json:"deleted"`
	Shared   int    `json:"shared"`
	Missing  int    `json:"missing"`
	Failed   int    `json:"failed"`
	Items    []Item `json:"items"`
}

// Reconciler deletes unreferenced orphaned artifacts.
type Reconciler struct {
	registry Registry
	store    artifact.Deleter
	lockPath string
	lockWait time.Duration
	logger   *slog.Logger
}

// New builds a Reconciler. lockPath names the store lock file; ingests hold it
// shared while they upload and insert, a run holds it exclusively.
func New(reg Registry, store artifact.Deleter, lockPath string, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		registry: reg,
		store:    store,
		lockPath: lockPath,
		lockWait: defaultLockWait,
		logger:   logging.NewComponentLogger(logger, "reconcile"),
	}
}

// SetLockWait bounds how long Run waits for in-flight ingests and other runs
// to release the store lock. Zero or less fails immediately.
func (r *Reconciler) SetLockWait(d time.Duration) {
	r.lockWait = d
}

// Run processes every unresolved orphan. With dryRun set nothing is deleted
// or resolved; the report shows what would happen.
func (r *Reconciler) Run(ctx context.Context, dryRun bool) (Report, error) {
	report := Report{DryRun: dryRun}
	if r.registry == nil || r.store == nil {
		return report, errors.New("reconcile: registry and artifact store are required")
	}

	lock := flock.New(r.lockPath)
	if err := r.acquire(ctx, lock); err != nil {
		return report, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release reconcile lock",
				logging.String("lock", r.lockPath),
				logging.Error(err),
			)
		}
	}()

	orphans, err := r.registry.Orphans(ctx, false)
	if err != nil {
		return report, fmt.Errorf("list orphans: %w", err)
	}
	r.logger.Info("reconcile started",
		logging.Int("orphans", len(orphans)),
		logging.Bool("dry_run", dryRun),
	)

	for _, orphan := range orphans {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		item := r.reconcileOne(ctx, orphan, dryRun)
		report.Examined++
		switch item.Action {
		case ActionDeleted:
			report.Deleted++
		case ActionShared:
			report.Shared++
		case ActionMissing:
			report.Missing++
		case ActionFailed:
			report.Failed++
		}
		report.Items = append(report.Items, item)
	}

	r.logger.Info("reconcile finished",
		logging.Int("examined", report.Examined),
		logging.Int("deleted", report.Deleted),
		logging.Int("shared", report.Shared),
		logging.Int("missing", report.Missing),
		logging.Int("failed", report.Failed),
	)
	return report, nil
}

func (r *Reconciler) acquire(ctx context.Context, lock *flock.Flock) error {
	var (
		ok  bool
		err error
	)
	if r.lockWait <= 0 {
		ok, err = lock.TryLock()
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, r.lockWait)
		ok, err = lock.TryLockContext(waitCtx, lockRetryDelay)
		cancel()
	}
	switch {
	case ok:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case err == nil, errors.Is(err, context.DeadlineExceeded):
		return ErrLocked
	default:
		return fmt.Errorf("acquire lock: %w", err)
	}
}

func (r *Reconciler) reconcileOne(ctx context.Context, orphan registry.Orphan, dryRun bool) Item {
	item := Item{Orphan: orphan}
	logger := r.logger.With(
		logging.Int64("orphan_id", orphan.ID),
		logging.StorageRef(orphan.StorageRef),
	)
	fail := func(err error) Item {
		item.Action = ActionFailed
		item.Error = err.Error()
		logger.Warn("orphan reconcile failed",
			logging.EventType("reconcile_failed"),
			logging.Hint("rerun reconcile once the store is reachable"),
			logging.Error(err),
		)
		return item
	}

	shared, err := r.registry.ReferencedRef(ctx, orphan.StorageRef)
	if err != nil {
		return fail(err)
	}

	switch {
	case shared:
		item.Action = ActionShared
	case dryRun:
		item.Action = ActionDeleted
	default:
		err := r.store.Delete(ctx, orphan.StorageRef)
		switch {
		case err == nil:
			item.Action = ActionDeleted
		case errors.Is(err, artifact.ErrNotFound):
			item.Action = ActionMissing
		default:
			return fail(err)
		}
	}

	if dryRun {
		return item
	}
	if err := r.registry.ResolveOrphan(ctx, orphan.ID); err != nil {
		return fail(err)
	}
	logger.Info("orphan resolved", logging.String("action", item.Action))
	return item
}
