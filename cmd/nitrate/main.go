// Package main provides the nitrate CLI.
package main

import (
	"os"

	"github.com/mesh-intelligence/nitrate/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
