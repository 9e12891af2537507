// Package main provides the entry point for the Converse CLI.
package main

import (
	"fmt"
	"os"

	"github.com/converse-ai/converse/cmd/converse/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
