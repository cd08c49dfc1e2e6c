package main

import (
	"os"

	"github.com/ldelacroix/polyglossia/internal/cli"
)

// Version information
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	rootCmd := cli.NewRootCommand(Version, Commit, BuildDate)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
