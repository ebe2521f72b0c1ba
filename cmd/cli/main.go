// Package main is the entry point of the dbschema binary.
package main

import (
	"os"

	"github.com/Lorentz83/dbSchema/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
