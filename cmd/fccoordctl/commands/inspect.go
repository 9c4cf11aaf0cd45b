package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the current target version and attempt without writing anything",
	Long: `inspect is a debug-only read path: it resolves the same target
version and attempt a commit would, but performs no writes, so it is
safe to run against a live backend without perturbing other clients.

It does not replace reading tracker/, commit/, and archive/ directly
when diagnosing a stuck backend; it reports only what the resolver
would decide right now, which can change before the next commit runs.

Examples:
  fccoordctl inspect
  fccoordctl inspect --config /etc/fccoord/config.yaml`,
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
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

	version, attempt, published, err := coord.Inspect(ctx)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}

	cmd.Printf("version: %d\n", version)
	cmd.Printf("attempt: %d\n", attempt)
	cmd.Printf("published: %t\n", published)
	return nil
}
