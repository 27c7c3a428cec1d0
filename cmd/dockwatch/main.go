// Package main is the entry point for the dockwatch CLI.
package main

import (
	"os"

	"github.com/dockwatch-io/dockwatch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
