// Package main is the entry point for the bean-import CLI.
package main

import (
	"os"

	"github.com/pigeonworks-llc/bean-import/cmd/bean-import/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
