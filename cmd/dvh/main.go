package main

import (
	"os"

	"dvh/internal/cli"
)

var (
	// set at build time with -ldflags
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	cli.Version, cli.GitCommit = Version, GitCommit
	os.Exit(cli.Execute())
}
