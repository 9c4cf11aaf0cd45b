package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/catalogfs/commitcoord/internal/logger"
	"github.com/catalogfs/commitcoord/pkg/storage"
)

// runArchiver lists tracker/ and migrates any sentinel whose version
// trails currentVersion by more than maxSave into archive/ as a
// tombstone expiring at clock.Now()+cleanTTL, then deletes the
// original sentinel. Tombstones are never overwritten, so concurrent
// archivers racing on the same version are benign.
func runArchiver(ctx context.Context, driver storage.Driver, clock Clock, maxSave int, cleanTTL time.Duration, currentVersion int) error {
	entries, err := driver.ListAllFiles(ctx, trackerDir, false)
	if err != nil {
		return fmt.Errorf("list %s: %w", trackerDir, err)
	}

	for _, e := range entries {
		v, err := parseLeadingInt(e.Name)
		if err != nil {
			return fmt.Errorf("parse tracker entry %q: %w", e.Name, err)
		}
		if currentVersion-v <= maxSave {
			continue
		}

		expireAt := clock.Now().Add(cleanTTL).UnixMilli()
		tombstone := archiveTombstonePath(v, expireAt)

		exists, err := tombstoneExists(ctx, driver, v)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		if err := driver.WriteFileWithoutGuarantees(ctx, tombstone, []byte(itoaInt64(expireAt))); err != nil {
			return fmt.Errorf("write %s: %w", tombstone, err)
		}
		if err := driver.Delete(ctx, trackerPath(v), false); err != nil {
			return fmt.Errorf("delete %s: %w", trackerPath(v), err)
		}

		logger.Debug("archived tracker sentinel",
			logger.KeyVersion, v, "expire_at_ms", expireAt)
	}

	return nil
}

// tombstoneExists reports whether archive/ already holds a tombstone
// for version v, regardless of its expiration timestamp.
func tombstoneExists(ctx context.Context, driver storage.Driver, v int) (bool, error) {
	entries, err := driver.ListAllFiles(ctx, archiveDir, false)
	if err != nil {
		return false, fmt.Errorf("list %s: %w", archiveDir, err)
	}
	for _, e := range entries {
		ev, _, err := parseArchiveName(e.Name)
		if err != nil {
			continue
		}
		if ev == v {
			return true, nil
		}
	}
	return false, nil
}

func itoaInt64(n int64) string {
	return fmt.Sprintf("%d", n)
}
