// Package main provides the CLI entry point.
package main

import (
	"os"

	"github.com/leapstack-labs/bifrost/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
