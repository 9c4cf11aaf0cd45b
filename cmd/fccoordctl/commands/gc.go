package commands

import (
	"context"
	"fmt"

	"github.com/catalogfs/commitcoord/internal/logger"
	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Sweep superseded versions and expired archive tombstones",
	Long: `gc runs the Archiver and GC passes standalone, without attempting a
commit.

A successful commit already triggers this sweep for the version it just
published. Running gc out-of-band moves tracker sentinels more than
max_save versions behind the current target into the archive, and
deletes the commit workspace (attempt debris included) of the
lowest-versioned archive tombstone, or of the lowest
archive_batch_clean_max_size of them once the archive holds more than
max_archive_size, when they are past their cleanup TTL. It does not
touch the attempts of versions that are not yet archived: PRE_COMMIT
files left there by an abandoned or contended commit stay until a
committer resolves them via TTL.

Examples:
  fccoordctl gc
  fccoordctl gc --config /etc/fccoord/config.yaml`,
	RunE: runGC,
}

func runGC(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx := context.Background()
	coord, err := BuildCoordinator(ctx, cfg)
	if err != nil {
		return err
	}

	logger.Debug("running sweep", logger.KeyOperation, "gc")
	if err := coord.Sweep(ctx); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	cmd.Println("sweep complete")
	return nil
}
