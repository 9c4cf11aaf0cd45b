package commands

import (
	"fmt"
	"os"

	"github.com/catalogfs/commitcoord/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

const defaultConfigPath = "fccoord.yaml"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `init writes the built-in default configuration as YAML, for an
operator to edit before running commit, gc, or inspect against a real
backend.

By default the file is created at ./fccoord.yaml. Use --config to pick
a different path.

Examples:
  fccoordctl init
  fccoordctl init --config /etc/fccoord/config.yaml
  fccoordctl init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = defaultConfigPath
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := config.Save(config.Default(), path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	cmd.Printf("configuration file created at: %s\n", path)
	cmd.Println("edit it to configure the storage backend, then run:")
	cmd.Printf("  fccoordctl commit --config %s\n", path)
	return nil
}
