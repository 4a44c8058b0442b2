// hydra serves multi-session SSH terminals to a browser and records every
// command typed in them.
package main

import (
	"fmt"
	"os"

	"github.com/acolita/hydra-sh/internal/cmd"
)

// Version information - set at build time.
var (
	Version   = "0.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	root := cmd.NewRootCmd(cmd.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
