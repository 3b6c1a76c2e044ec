// Command knapsack propagates and solves knapsack instances described in
// YAML files.
//
//	knapsack propagate pantry.yaml
//	knapsack solve --workers 4 --timeout 10s instances/*.yaml
package main

import (
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
