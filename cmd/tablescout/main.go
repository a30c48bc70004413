// Package main is the entry point for the tablescout CLI.
package main

import (
	"os"

	"github.com/tablescout/tablescout/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
