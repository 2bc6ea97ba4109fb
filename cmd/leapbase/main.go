// Package main provides the leapbase CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapbase/internal/cli"
	"github.com/leapstack-labs/leapbase/internal/jobs"
)

func main() {
	handlers := jobs.NewHandlerRegistry()
	if err := cli.Execute(handlers); err != nil {
		os.Exit(1)
	}
}
