package main

import (
	"os"

	"github.com/devflowhq/devflow/internal/cliapp"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	cliapp.SetVersion(Version)

	if err := cliapp.Execute(); err != nil {
		os.Exit(1)
	}
}
