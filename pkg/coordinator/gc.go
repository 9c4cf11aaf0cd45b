package coordinator

import (
	"context"
	"fmt"
	"sort"

	"github.com/catalogfs/commitcoord/internal/logger"
	"github.com/catalogfs/commitcoord/pkg/storage"
)

// tombstone pairs a parsed archive entry with its raw filename so GC
// can delete the exact path it listed.
type tombstone struct {
	Name         string
	Version      int
	ExpireMillis int64
}

// runGC lists archive/, sorts by version, and deletes the first batch
// of already-expired tombstones along with the commit workspace each
// one points at. Batch size is 1 unless the archive holds more than
// maxArchiveSize entries, in which case it is archiveBatchSize.
// Deletion failures within the batch are not retried here; the next
// caller's GC pass will re-observe the tombstone.
func runGC(ctx context.Context, driver storage.Driver, clock Clock, maxArchiveSize, archiveBatchSize int) error {
	entries, err := driver.ListAllFiles(ctx, archiveDir, false)
	if err != nil {
		return fmt.Errorf("list %s: %w", archiveDir, err)
	}

	tombstones := make([]tombstone, 0, len(entries))
	for _, e := range entries {
		v, t, err := parseArchiveName(e.Name)
		if err != nil {
			return fmt.Errorf("parse archive entry %q: %w", e.Name, err)
		}
		tombstones = append(tombstones, tombstone{Name: e.Name, Version: v, ExpireMillis: t})
	}
	sort.Slice(tombstones, func(i, j int) bool { return tombstones[i].Version < tombstones[j].Version })

	batchSize := 1
	if len(tombstones) > maxArchiveSize {
		batchSize = archiveBatchSize
	}
	if batchSize > len(tombstones) {
		batchSize = len(tombstones)
	}

	logger.Debug("gc batch selected", logger.KeyCount, batchSize)

	now := clock.Now().UnixMilli()
	for _, ts := range tombstones[:batchSize] {
		if ts.ExpireMillis > now {
			continue
		}

		workspace := commitWorkspacePath(ts.Version)
		if err := driver.Delete(ctx, workspace, true); err != nil {
			return fmt.Errorf("delete %s: %w", workspace, err)
		}

		tombstonePath := join(archiveDir, ts.Name)
		if err := driver.Delete(ctx, tombstonePath, false); err != nil {
			return fmt.Errorf("delete %s: %w", tombstonePath, err)
		}

		logger.Debug("gc removed expired version", logger.KeyVersion, ts.Version)
	}

	return nil
}
