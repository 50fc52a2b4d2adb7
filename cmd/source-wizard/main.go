// Package main provides the source-wizard command line tool.
package main

import (
	"os"
)

// version is set at build time.
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
