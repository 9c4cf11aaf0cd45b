// Package coordinator implements the optimistic, filesystem-based
// commit protocol: version and attempt resolution, the two-phase
// committer, contention adjudication, and the archive/GC flow that
// retires superseded versions.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/catalogfs/commitcoord/internal/logger"
	"github.com/catalogfs/commitcoord/internal/telemetry"
	"github.com/catalogfs/commitcoord/pkg/metrics"
	"github.com/catalogfs/commitcoord/pkg/storage"
	"go.opentelemetry.io/otel/attribute"
)

// Options configures a Coordinator.
type Options struct {
	// Driver is the storage backend the coordinator writes to.
	Driver storage.Driver

	// Clock supplies "now" for TTL comparisons. Defaults to
	// SystemClock() if nil.
	Clock Clock

	// MaxSave, MaxArchiveSize, ArchiveBatchCleanMaxSize, TTLPreCommit,
	// and CleanTTL mirror the coordinator's configuration table.
	MaxSave                  int
	MaxArchiveSize           int
	ArchiveBatchCleanMaxSize int
	TTLPreCommit             time.Duration
	CleanTTL                 time.Duration

	// Metrics is optional; a nil value disables metrics collection.
	Metrics metrics.Metrics
}

// Coordinator drives the commit protocol against one storage root.
// It holds no mutable state between Commit calls beyond what is
// needed to reach the storage driver: every decision is made from a
// fresh read of the backing tree.
type Coordinator struct {
	driver  storage.Driver
	clock   Clock
	metrics metrics.Metrics

	maxSave          int
	maxArchiveSize   int
	archiveBatchSize int
	ttlPreCommit     time.Duration
	cleanTTL         time.Duration
}

// New constructs a Coordinator from opts.
func New(opts Options) *Coordinator {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	return &Coordinator{
		driver:           opts.Driver,
		clock:            clock,
		metrics:          opts.Metrics,
		maxSave:          opts.MaxSave,
		maxArchiveSize:   opts.MaxArchiveSize,
		archiveBatchSize: opts.ArchiveBatchCleanMaxSize,
		ttlPreCommit:     opts.TTLPreCommit,
		cleanTTL:         opts.CleanTTL,
	}
}

// Commit runs one full pass of the protocol: resolve the target
// version, resolve the current attempt under it, then run the
// two-phase committer (which defers to the Contention Adjudicator if
// the attempt workspace is already occupied). On success it also runs
// the Archiver and GC before returning.
//
// Commit either returns nil, meaning the COMMIT-HINT and debug
// witness are both durably written, or returns a non-nil error — most
// commonly wrapping ErrConcurrentModification, in which case the
// caller should retry the whole call after backoff. There is no
// partial-success path.
func (c *Coordinator) Commit(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "coordinator.commit")
	defer span.End()

	metrics.CommitAttempt(c.metrics)
	start := time.Now()

	rv, err := resolveVersion(ctx, c.driver)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	ra, err := resolveAttempt(ctx, c.driver, rv)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	telemetry.SetAttributes(ctx,
		attribute.Int("commitcoord.version", rv.Version),
		attribute.Int("commitcoord.attempt", ra.Attempt))

	if err := runAttempt(ctx, c.driver, c.clock, c.ttlPreCommit, rv, ra); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			metrics.CommitConflict(c.metrics)
		}
		telemetry.RecordError(ctx, err)
		return err
	}

	metrics.CommitSuccess(c.metrics)
	elapsed := time.Since(start)
	metrics.ObservePhase(c.metrics, "commit", elapsed)
	logger.Debug("commit published", logger.KeyVersion, rv.Version, logger.KeyAttempt, ra.Attempt,
		logger.KeyDurationMS, float64(elapsed.Microseconds())/1000.0)

	// Archival and GC run only after a successful publish; a failed
	// or contended attempt leaves its own debris for the next caller
	// to adjudicate via TTL rather than cleaning up here.
	if err := runArchiver(ctx, c.driver, c.clock, c.maxSave, c.cleanTTL, rv.Version); err != nil {
		logger.Warn("archiver failed after successful commit", logger.KeyVersion, rv.Version, logger.KeyError, err.Error())
	}
	if err := runGC(ctx, c.driver, c.clock, c.maxArchiveSize, c.archiveBatchSize); err != nil {
		logger.Warn("gc failed after successful commit", logger.KeyVersion, rv.Version, logger.KeyError, err.Error())
	}

	c.reportBacklog(ctx)

	return nil
}

// reportBacklog sets the tracker/archive backlog gauges from a fresh
// listing. Listing errors are ignored (the gauge is left unchanged),
// since backlog reporting must never fail a commit.
func (c *Coordinator) reportBacklog(ctx context.Context) {
	if tracked, err := c.driver.ListAllFiles(ctx, trackerDir, false); err == nil {
		metrics.SetTrackerBacklog(c.metrics, len(tracked))
	}
	if archived, err := c.driver.ListAllFiles(ctx, archiveDir, false); err == nil {
		metrics.SetArchiveBacklog(c.metrics, len(archived))
	}
}

// Inspect returns a debug-only snapshot of the current target version
// and attempt without performing any writes. It exists to back the
// CLI's "inspect" subcommand; it is not a production read path.
func (c *Coordinator) Inspect(ctx context.Context) (version int, attempt int, published bool, err error) {
	rv, err := resolveVersionReadOnly(ctx, c.driver)
	if err != nil {
		return 0, 0, false, err
	}

	hinted, err := c.driver.Exists(ctx, rv.HintPath)
	if err != nil {
		return 0, 0, false, err
	}

	s, err := maxAttemptNumber(ctx, c.driver, rv.SubTracker)
	if err != nil {
		return rv.Version, 0, hinted, err
	}

	expired, err := c.driver.Exists(ctx, expiredHintPath(rv.Version, s))
	if err != nil {
		return rv.Version, 0, hinted, err
	}
	if expired {
		s++
	}

	return rv.Version, s, hinted, nil
}

// Sweep runs the Archiver and GC passes standalone, without attempting
// a commit. It exists for out-of-band maintenance: a commit's own
// post-success sweep only ever sees the version it just published, so
// an operator (or a scheduled job) can call Sweep directly to retire
// archive tombstones and superseded versions left behind by commits
// that never reached a successful publish.
func (c *Coordinator) Sweep(ctx context.Context) error {
	rv, err := resolveVersionReadOnly(ctx, c.driver)
	if err != nil {
		return err
	}

	if err := runArchiver(ctx, c.driver, c.clock, c.maxSave, c.cleanTTL, rv.Version); err != nil {
		return fmt.Errorf("archiver: %w", err)
	}
	if err := runGC(ctx, c.driver, c.clock, c.maxArchiveSize, c.archiveBatchSize); err != nil {
		return fmt.Errorf("gc: %w", err)
	}
	c.reportBacklog(ctx)
	return nil
}
