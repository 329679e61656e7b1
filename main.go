// Package main is the entry point for the askbank CLI.
package main

import (
	"askbank/cli/cmd"
)

func main() {
	cmd.Execute()
}
