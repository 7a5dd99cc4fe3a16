// Package main is the entry point for the ephemeris application
package main

import (
	"github.com/ethpandaops/ephemeris/cmd"
)

func main() {
	cmd.Execute()
}
