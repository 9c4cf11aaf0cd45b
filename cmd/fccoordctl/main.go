// Command fccoordctl drives the commit coordinator protocol from the
// command line: run a commit attempt, sweep abandoned debris and
// superseded versions, or inspect the currently resolved version.
package main

import (
	"fmt"
	"os"

	"github.com/catalogfs/commitcoord/cmd/fccoordctl/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
