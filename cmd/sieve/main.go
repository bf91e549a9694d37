// Package main is the entry point for the sieve CLI.
package main

import (
	"os"

	"github.com/sieveworks/sieve/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
