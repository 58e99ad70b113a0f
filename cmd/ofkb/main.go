package main

import (
	"fmt"
	"os"

	app "github.com/rhydlewis/omnifocus-to-kanban/internal"
	"github.com/rhydlewis/omnifocus-to-kanban/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)

	configPath := os.Getenv("OFKB_CONFIG")
	a, err := app.NewApp(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing ofkb: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
