package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/catalogfs/commitcoord/internal/clientid"
	"github.com/catalogfs/commitcoord/internal/logger"
	"github.com/catalogfs/commitcoord/pkg/storage"
)

// runAttempt drives the Two-phase Committer for one client against
// the already-resolved version and attempt. On entry it first checks
// whether the attempt workspace is non-empty; if so it defers entirely
// to the Contention Adjudicator and returns its (always non-nil)
// result without writing any files of its own.
func runAttempt(ctx context.Context, driver storage.Driver, clock Clock, ttl time.Duration, rv resolvedVersion, ra resolvedAttempt) error {
	entries, err := driver.ListAllFiles(ctx, ra.WorkspacePath, false)
	if err != nil {
		return fmt.Errorf("list %s: %w", ra.WorkspacePath, err)
	}
	if len(entries) > 0 {
		return adjudicate(ctx, driver, clock, ttl, rv, ra, entries)
	}

	id, err := clientid.New()
	if err != nil {
		return fmt.Errorf("generate client id: %w", err)
	}

	preCommitPath := preCommitFilePath(rv.Version, ra.Attempt, id)
	if err := driver.WriteFileWithoutGuarantees(ctx, preCommitPath, []byte(id)); err != nil {
		return fmt.Errorf("write %s: %w", preCommitPath, err)
	}

	afterP1, err := driver.ListAllFiles(ctx, ra.WorkspacePath, false)
	if err != nil {
		return fmt.Errorf("list %s: %w", ra.WorkspacePath, err)
	}
	if hasPeer(afterP1, id) {
		logger.Debug("peer observed after pre-commit, aborting",
			logger.KeyVersion, rv.Version, logger.KeyAttempt, ra.Attempt, logger.KeyClientID, id)
		return newError("precommit", rv.Version, ra.Attempt, id, ErrConcurrentModification)
	}

	commitPath := commitFilePath(rv.Version, ra.Attempt, id)
	if err := driver.WriteFileWithoutGuarantees(ctx, commitPath, []byte(id)); err != nil {
		return fmt.Errorf("write %s: %w", commitPath, err)
	}

	afterP2, err := driver.ListAllFiles(ctx, ra.WorkspacePath, false)
	if err != nil {
		return fmt.Errorf("list %s: %w", ra.WorkspacePath, err)
	}
	// A peer's EXPIRED-HINT.TXT written since P1 also counts as a peer here and aborts this attempt.
	if hasPeer(afterP2, id) {
		logger.Debug("peer observed after commit, aborting",
			logger.KeyVersion, rv.Version, logger.KeyAttempt, ra.Attempt, logger.KeyClientID, id)
		return newError("commit", rv.Version, ra.Attempt, id, ErrConcurrentModification)
	}

	body := fmt.Sprintf("%s@%d", id, ra.Attempt)
	if err := driver.WriteFileWithoutGuarantees(ctx, rv.HintPath, []byte(body)); err != nil {
		return fmt.Errorf("write %s: %w", rv.HintPath, err)
	}
	if err := driver.WriteFileWithoutGuarantees(ctx, debugWitnessPath(rv.Version, id), []byte(id)); err != nil {
		return fmt.Errorf("write debug witness for %s: %w", id, err)
	}

	logger.Info("published version",
		logger.KeyVersion, rv.Version, logger.KeyAttempt, ra.Attempt, logger.KeyClientID, id)
	return nil
}

// hasPeer reports whether entries contains anything other than the
// files owned by clientID (PRE_COMMIT-<id>.txt and <id>.txt).
func hasPeer(entries []storage.Entry, clientID string) bool {
	own := map[string]bool{
		preCommitPrefix + clientID + ".txt": true,
		clientID + ".txt":                   true,
	}
	for _, e := range entries {
		if !own[e.Name] {
			return true
		}
	}
	return false
}
