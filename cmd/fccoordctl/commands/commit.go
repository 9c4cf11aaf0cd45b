package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/catalogfs/commitcoord/internal/logger"
	"github.com/catalogfs/commitcoord/pkg/coordinator"
	"github.com/spf13/cobra"
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Run one commit attempt against the configured backend",
	Long: `commit resolves the current target version, resolves an attempt
within it, and runs the two-phase commit protocol once.

On success, the attempt is published and the run also moves tracker
sentinels more than max_save versions behind into the archive, then
checks the lowest-versioned archive tombstone (the lowest
archive_batch_clean_max_size of them once the archive holds more than
max_archive_size) and retires those past their cleanup TTL.

A concurrent modification from another client is reported as a normal
failure, not a crash: the caller is expected to retry.

Examples:
  fccoordctl commit
  fccoordctl commit --config /etc/fccoord/config.yaml`,
	RunE: runCommit,
}

func runCommit(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx := context.Background()
	shutdown, err := InitTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	coord, err := BuildCoordinator(ctx, cfg)
	if err != nil {
		return err
	}

	logger.Debug("running commit", logger.KeyOperation, "commit")
	if err := coord.Commit(ctx); err != nil {
		if errors.Is(err, coordinator.ErrConcurrentModification) {
			cmd.Println("commit failed: concurrent modification, retry")
			return err
		}
		return fmt.Errorf("commit: %w", err)
	}

	cmd.Println("commit published")
	return nil
}
