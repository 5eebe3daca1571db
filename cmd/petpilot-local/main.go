package main

import (
	"os"

	"github.com/naz-az/petpilot-local/internal/cli"
	"github.com/naz-az/petpilot-local/internal/version"
)

func main() {
	cmd := cli.NewRootCommand(os.Stdout, cli.BuildInfo{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildTime: version.BuildTime,
	})
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
