/*
Package main provides the CLI entry point for otadrop.
*/
package main

import (
	"os"

	"github.com/oarkflow/otadrop/internal/cmd"
	"github.com/oarkflow/otadrop/internal/failure"
)

func main() {
	if err := cmd.Execute(); err != nil {
		failure.Write(os.Stderr, err)
		os.Exit(1)
	}
}
