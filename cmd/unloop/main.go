package main

import (
	"os"

	"github.com/unloop/unloop/cmd/unloop/cmds"
	"github.com/unloop/unloop/pkg/version"
)

// Build is the git sha of this binary's source.
var Build string

func main() {
	if Build != "" {
		version.UnloopVersion.Build = Build
	}
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
